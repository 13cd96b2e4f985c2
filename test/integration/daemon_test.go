//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/daemon"
	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/httpapi"
	"github.com/farmstock/stockmon/internal/infra"
)

var _ = Describe("Monitor daemon", func() {
	var (
		tmpDir  string
		h       *harness
		poller  *daemon.Poller
		monitor *daemon.Monitor
		api     *httptest.Server
		ctx     context.Context
		cancel  context.CancelFunc
		done    chan error
	)

	stopMonitor := func() {
		if done == nil {
			return
		}
		cancel()
		Eventually(done, 5*time.Second).Should(Receive(MatchError(context.Canceled)))
		done = nil
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "stockmon-daemon-*")
		Expect(err).NotTo(HaveOccurred())

		h = newHarness(tmpDir)
		h.backend.SetCollection("/feeds", map[string]any{
			"id": "feed-1", "name": "Silage", "quantity": 2, "minimumQuantity": 8,
		})

		logger := zap.NewNop()
		poller = daemon.NewPoller(daemon.PollerConfig{
			StartupDelay: 10 * time.Millisecond,
			Interval:     time.Hour,
		}, h.runner, logger)
		monitor = daemon.NewMonitor(daemon.MonitorConfig{
			HeartbeatInterval: 20 * time.Millisecond,
			SettingsRefresh:   50 * time.Millisecond,
			Platform:          "ios",
			Version:           "integration",
		}, h.notifier, h.settings, h.devices, poller, h.store, infra.NewProcessManager(), infra.SystemClock{}, logger)

		ctx, cancel = context.WithCancel(context.Background())
		api = httptest.NewServer(httpapi.NewRouter(httpapi.Deps{
			BaseContext: ctx,
			Scheduler:   poller,
			Settings:    h.settings,
			State:       monitor.State,
			Version:     "integration",
			Logger:      logger,
		}))

		done = make(chan error, 1)
		go func() { done <- monitor.Run(ctx) }()
	})

	AfterEach(func() {
		stopMonitor()
		api.Close()
		h.Close()
		os.RemoveAll(tmpDir)
	})

	It("should register the device and run the first automatic check", func() {
		Eventually(h.backend.Devices).Should(ContainElement(HaveField("Platform", "ios")))
		Eventually(h.pushSvc.Messages, 5*time.Second).Should(HaveLen(1))

		Eventually(func() time.Time {
			state, err := h.store.LoadState()
			if err != nil || state == nil {
				return time.Time{}
			}
			return state.LastCycleAt
		}, 5*time.Second).ShouldNot(BeZero())
	})

	It("should stop scheduling when automatic alerts are turned off through the API", func() {
		Eventually(poller.State).Should(Equal(daemon.StateScheduled))

		req, err := http.NewRequest(http.MethodPut, api.URL+"/settings", strings.NewReader(`{"automaticStockAlerts":false}`))
		Expect(err).NotTo(HaveOccurred())
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		Eventually(poller.State, 5*time.Second).Should(Equal(daemon.StateIdle))
		Expect(h.backend.Settings()).To(HaveKeyWithValue("automaticStockAlerts", false))
	})

	It("should run a manual check on request", func() {
		Eventually(h.pushSvc.Messages, 5*time.Second).Should(HaveLen(1))
		Eventually(poller.State, 5*time.Second).Should(Equal(daemon.StateScheduled))

		h.backend.SetCollection("/seeds", map[string]any{
			"id": "s-9", "name": "Clover", "quantity": 0, "minimumQuantity": 1,
		})
		resp, err := http.Post(api.URL+"/check", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

		Eventually(h.pushSvc.Messages, 5*time.Second).Should(HaveLen(2))
		Expect(h.pushSvc.Messages()[1].Data).To(HaveKeyWithValue("itemId", "s-9"))
	})

	It("should clear the daemon record on shutdown", func() {
		Eventually(func() *domain.DaemonState {
			state, _ := h.store.LoadState()
			return state
		}).ShouldNot(BeNil())

		stopMonitor()

		state, err := h.store.LoadState()
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})
})
