// Package main runs the terminal engagement dashboard: it bootstraps a
// meeting via the HTTP API, streams engagement over WebSocket, and
// renders the chart as text. Status updates are read from stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-meet/engagement/config"
	"github.com/aura-meet/engagement/internal/apiclient"
	"github.com/aura-meet/engagement/internal/countdown"
	"github.com/aura-meet/engagement/internal/engagement"
	"github.com/aura-meet/engagement/internal/protocol"
	"github.com/aura-meet/engagement/internal/wsclient"
)

func main() {
	roomID := flag.String("room", "", "meeting room id")
	teamsInvite := flag.String("teams", "", "MS Teams invite URL or meeting code")
	fingerprint := flag.String("fingerprint", "", "device fingerprint (random when empty)")
	flag.Parse()

	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if *roomID == "" && *teamsInvite == "" {
		fmt.Fprintln(os.Stderr, "usage: dashboard -room <uuid> | -teams <invite>")
		os.Exit(2)
	}
	if *fingerprint == "" {
		*fingerprint = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := apiclient.New(cfg.Client.ServerURL, 15*time.Second, logger)
	visit, err := api.Visit(ctx, apiclient.VisitRequest{
		MeetingRoomID: *roomID,
		MSTeams:       *teamsInvite,
		Fingerprint:   *fingerprint,
	})
	if err != nil {
		logger.Fatal("visit", zap.Error(err))
	}
	logger.Info("meeting resolved",
		zap.String("meeting_id", visit.MeetingID),
		zap.Time("start", visit.MeetingStart),
		zap.Time("end", visit.MeetingEnd))

	clock := clockwork.NewRealClock()
	client := wsclient.New(cfg.Client.WSURL, wsclient.Config{
		PingInterval:    time.Duration(cfg.Client.PingIntervalSec) * time.Second,
		JoinTimeout:     time.Duration(cfg.Client.JoinTimeoutSec) * time.Second,
		ReconnectBase:   time.Duration(cfg.Client.ReconnectBaseMS) * time.Millisecond,
		ReconnectMax:    time.Duration(cfg.Client.ReconnectMaxMS) * time.Millisecond,
		ReconnectJitter: time.Duration(cfg.Client.ReconnectJitterMS) * time.Millisecond,
	}, logger)
	defer client.Close()

	dash := &dashboard{
		meetingStart: visit.MeetingStart,
		meetingEnd:   visit.MeetingEnd,
	}
	done := make(chan struct{})

	client.OnSnapshot(func(s engagement.Summary) {
		dash.setSummary(s)
		dash.render(clock.Now())
	})
	client.OnDelta(func(d engagement.Delta) {
		dash.applyDelta(d, client.ParticipantID())
		dash.render(clock.Now())
	})
	client.OnError(func(err error) {
		logger.Warn("transport", zap.Error(err))
	})
	client.OnStateChange(func(state wsclient.State) {
		logger.Info("connection state", zap.String("state", string(state)))
	})
	client.OnMeetingSummary(func(frame protocol.MeetingSummaryFrame) {
		fmt.Printf("\nMeeting finished: %d participants, engagement %.1f%% (%s)\n",
			frame.MaxParticipants, frame.NormalizedEngagement, frame.EngagementLevel)
	})
	client.OnMeetingEnded(func(message string) {
		fmt.Println("\nMeeting ended.")
		close(done)
	})

	joiner := countdown.NewAutoJoiner(client, logger)
	client.OnCountdown(func(frame protocol.MeetingCountdownFrame) {
		timer := countdown.New(clock,
			countdown.OnTick(func(snap countdown.Snapshot) {
				fmt.Printf("\rMeeting starts in %ds", snap.RemainingSeconds)
				if snap.ExcessiveDrift {
					fmt.Printf(" (local clock off by %dms)", snap.DriftMs)
				}
			}),
			countdown.OnComplete(func() {
				fmt.Println("\nMeeting started, joining...")
				if err := joiner.EnsureJoined(ctx, visit.MeetingID, visit.SessionToken); err != nil {
					logger.Warn("auto join", zap.Error(err))
				}
			}),
		)
		timer.Start(frame.StartTime, frame.ServerTime)
	})
	client.OnMeetingStarted(func(protocol.MeetingStartedFrame) {
		if err := joiner.EnsureJoined(ctx, visit.MeetingID, visit.SessionToken); err != nil {
			logger.Warn("auto join", zap.Error(err))
		}
	})

	if err := client.Connect(ctx, visit.MeetingID); err != nil {
		logger.Warn("connect", zap.Error(err))
	}
	if client.State() == wsclient.StateConnected {
		if _, err := client.Join(ctx, visit.SessionToken); err != nil {
			logger.Warn("join", zap.Error(err))
		}
	}

	go readStatusInput(client, dash, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-done:
	}
	logger.Info("dashboard stopped")
}

// readStatusInput turns stdin lines into status updates.
func readStatusInput(client *wsclient.Client, dash *dashboard, logger *zap.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		status := engagement.Status(line)
		if !status.Valid() {
			fmt.Fprintf(os.Stderr, "unknown status %q (use speaking, engaged or disengaged)\n", line)
			continue
		}
		client.SendStatus(status)
		dash.markSent(status)
		logger.Debug("status sent", zap.String("status", string(status)))
	}
}

// dashboard holds the chart state assembled from snapshot and deltas.
// The viewer's own status is tracked twice: optimistic holds what was
// sent, confirmed holds what the server echoed back in a delta.
type dashboard struct {
	mu           sync.Mutex
	summary      *engagement.Summary
	meetingStart time.Time
	meetingEnd   time.Time
	optimistic   engagement.Status
	confirmed    engagement.Status
}

func (d *dashboard) setSummary(s engagement.Summary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.summary = &s
}

func (d *dashboard) markSent(status engagement.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.optimistic = status
}

func (d *dashboard) applyDelta(delta engagement.Delta, selfID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if selfID != "" && delta.ParticipantID == selfID && delta.Status != "" {
		d.confirmed = delta.Status
		if d.confirmed == d.optimistic {
			d.optimistic = ""
		}
	}
	if d.summary == nil {
		return
	}
	next := engagement.ApplyDelta(*d.summary, delta)
	d.summary = &next
}

func (d *dashboard) render(now time.Time) {
	d.mu.Lock()
	points := engagement.BuildChartData(d.meetingStart, d.meetingEnd, now, d.summary)
	optimistic, confirmed := d.optimistic, d.confirmed
	d.mu.Unlock()

	if len(points) == 0 {
		return
	}
	fmt.Println()
	for _, p := range points {
		bar := strings.Repeat("#", int(p.EngagedPercent/5))
		fmt.Printf("%s  %5.1f%%  %-20s %d/%d engaged\n",
			p.Label, p.EngagedPercent, bar, p.EngagedCount, p.TotalParticipants)
	}
	switch {
	case optimistic != "":
		fmt.Printf("you: %s (pending)\n", optimistic)
	case confirmed != "":
		fmt.Printf("you: %s\n", confirmed)
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
