// Package playback — синхронизация независимого таймлайна воспроизведения
// с внешними sync-импульсами рига: детекция дрейфа, коррекция с гистерезисом,
// прогрессия по списку видео.
package playback

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vrulab/rigsync/internal/config"
	"github.com/vrulab/rigsync/internal/logger"
	"github.com/vrulab/rigsync/internal/notify"
)

// SyncStatus — состояние синхронизации таймлайна.
type SyncStatus string

const (
	StatusDisconnected  SyncStatus = "disconnected"   // начальное: синхронизация не запрашивалась
	StatusSynchronizing SyncStatus = "synchronizing"  // запрошена, коррекций ещё не было
	StatusSynchronized  SyncStatus = "synchronized"   // последняя коррекция принята
	StatusDriftDetected SyncStatus = "drift_detected" // принятых коррекций не было дольше таймаута
)

// State — снимок состояния воспроизведения тестовой сессии.
type State struct {
	CurrentVideoIndex int                `json:"current_video_index"`
	TotalVideos       int                `json:"total_videos"`
	CurrentVideoID    string             `json:"current_video_id"`
	CurrentTime       float64            `json:"current_time"`
	IsPlaying         bool               `json:"is_playing"`
	SyncStatus        SyncStatus         `json:"sync_status"`
	LastSyncTime      time.Time          `json:"last_sync_time"`
	PlayedVideos      []string           `json:"played_videos"`
	VideoProgress     map[string]float64 `json:"video_progress"` // id -> процент
	TotalProgress     float64            `json:"total_progress"`
}

// Controller — машина состояний playback одной тестовой сессии.
// Прогрессия видео не зависит от состояния синхронизации.
type Controller struct {
	mu        sync.Mutex
	sessionID string
	videos    []string
	state     State

	maxDriftMs    float64
	checkInterval time.Duration
	driftTimeout  time.Duration
	autoAdvance   bool
	loopPlayback  bool
	randomOrder   bool

	notifier      notify.Notifier
	completeFired bool
	rng           *rand.Rand
	now           func() time.Time // подменяется в тестах
}

// NewController создаёт контроллер для списка видео сессии.
func NewController(sessionID string, videos []string, cfg config.SessionConfig, n notify.Notifier) *Controller {
	if n == nil {
		n = notify.LogNotifier{}
	}
	c := &Controller{
		sessionID:     sessionID,
		videos:        videos,
		maxDriftMs:    cfg.MaxSyncDriftMs,
		checkInterval: time.Duration(cfg.SyncCheckIntervalMs * float64(time.Millisecond)),
		driftTimeout:  cfg.DriftTimeoutDuration(),
		autoAdvance:   cfg.AutoAdvance,
		loopPlayback:  cfg.LoopPlayback,
		randomOrder:   cfg.RandomOrder,
		notifier:      n,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		now:           time.Now,
	}
	if c.maxDriftMs <= 0 {
		c.maxDriftMs = 50
	}
	if c.checkInterval <= 0 {
		c.checkInterval = time.Second
	}
	c.state = State{
		TotalVideos:   len(videos),
		IsPlaying:     len(videos) > 0,
		SyncStatus:    StatusDisconnected,
		VideoProgress: make(map[string]float64),
	}
	if len(videos) > 0 {
		c.state.CurrentVideoID = videos[0]
	}
	return c
}

// SyncExternalTimeline сверяет таймлайн с внешним импульсом.
// Коррекция применяется только при дрейфе выше порога (гистерезис против
// джиттера ниже порога): время перезаписывается, статус — synchronized,
// уходит уведомление. Возвращает true, если коррекция принята.
func (c *Controller) SyncExternalTimeline(external float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.SyncStatus == StatusDisconnected {
		c.state.SyncStatus = StatusSynchronizing
	}
	driftMs := math.Abs(external-c.state.CurrentTime) * 1000
	if driftMs <= c.maxDriftMs {
		return false
	}
	c.state.CurrentTime = external
	c.state.LastSyncTime = c.now()
	c.state.SyncStatus = StatusSynchronized
	c.notifier.Notify("sync_correction", map[string]interface{}{
		"drift_ms":       driftMs,
		"corrected_time": external,
	}, c.sessionID)
	return true
}

// RunMonitor — периодическая проверка дрейфа: synchronized переходит в
// drift_detected, когда принятых коррекций не было дольше driftTimeout.
// Блокируется до отмены ctx.
func (c *Controller) RunMonitor(ctx context.Context) {
	ticker := time.NewTicker(c.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkDrift()
		}
	}
}

func (c *Controller) checkDrift() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.SyncStatus != StatusSynchronized {
		return
	}
	if c.now().Sub(c.state.LastSyncTime) <= c.driftTimeout {
		return
	}
	c.state.SyncStatus = StatusDriftDetected
	logger.Info("session %s: дрейф playback, нет коррекций дольше %v", c.sessionID, c.driftTimeout)
	c.notifier.Notify("playback_state", map[string]interface{}{
		"sync_status": string(StatusDriftDetected),
	}, c.sessionID)
}

// UpdateVideoTime продвигает время текущего видео; при duration > 0 ведёт
// процент прохождения, а достижение конца с auto_advance приводит к переходу
// на следующее видео.
func (c *Controller) UpdateVideoTime(t, duration float64) {
	c.mu.Lock()
	c.state.CurrentTime = t
	if duration > 0 && c.state.CurrentVideoID != "" {
		p := t / duration * 100
		if p > 100 {
			p = 100
		}
		c.state.VideoProgress[c.state.CurrentVideoID] = p
	}
	ended := duration > 0 && t >= duration
	c.mu.Unlock()
	if ended && c.autoAdvance {
		c.AdvanceToNextVideo()
	}
}

// AdvanceToNextVideo отмечает текущее видео пройденным и выбирает следующее
// (случайное среди непройденных при random_order, иначе по порядку).
// Конец списка: loop_playback=true — список начинается заново, иначе
// воспроизведение останавливается, прогресс 100%, уведомление о завершении
// уходит ровно один раз. Возвращает true, если есть следующее видео.
func (c *Controller) AdvanceToNextVideo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.TotalVideos == 0 {
		return false
	}
	cur := c.state.CurrentVideoID
	if cur != "" && !contains(c.state.PlayedVideos, cur) {
		c.state.PlayedVideos = append(c.state.PlayedVideos, cur)
		c.state.VideoProgress[cur] = 100
	}
	c.state.TotalProgress = float64(len(c.state.PlayedVideos)) / float64(c.state.TotalVideos) * 100

	next, ok := c.pickNext()
	if !ok {
		if c.loopPlayback {
			c.state.PlayedVideos = nil
			c.state.CurrentVideoIndex = 0
			c.state.CurrentVideoID = c.videos[0]
			c.state.CurrentTime = 0
			c.state.TotalProgress = 0
			return true
		}
		c.state.IsPlaying = false
		c.state.TotalProgress = 100.0
		if !c.completeFired {
			c.completeFired = true
			c.notifier.Notify("playback_complete", map[string]interface{}{
				"played_videos": len(c.state.PlayedVideos),
			}, c.sessionID)
		}
		return false
	}
	c.state.CurrentVideoIndex = next
	c.state.CurrentVideoID = c.videos[next]
	c.state.CurrentTime = 0
	return true
}

// pickNext возвращает индекс следующего видео; false — непройденных не осталось.
func (c *Controller) pickNext() (int, bool) {
	if c.randomOrder {
		var candidates []int
		for i, id := range c.videos {
			if !contains(c.state.PlayedVideos, id) {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			return 0, false
		}
		return candidates[c.rng.Intn(len(candidates))], true
	}
	next := c.state.CurrentVideoIndex + 1
	if next >= c.state.TotalVideos {
		return 0, false
	}
	return next, true
}

// State возвращает копию текущего состояния.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.PlayedVideos = append([]string(nil), c.state.PlayedVideos...)
	st.VideoProgress = make(map[string]float64, len(c.state.VideoProgress))
	for k, v := range c.state.VideoProgress {
		st.VideoProgress[k] = v
	}
	return st
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
