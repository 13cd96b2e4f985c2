//go:build integration

package integration

import (
	"context"
	"net/http"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/usecase"
)

var _ = Describe("Stock check cycle", func() {
	var (
		tmpDir string
		h      *harness
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "stockmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		h = newHarness(tmpDir)
		ctx = context.Background()
	})

	AfterEach(func() {
		h.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("alerting", func() {
		Context("when a feed item is below its minimum", func() {
			BeforeEach(func() {
				h.backend.SetCollection("/feeds", map[string]any{
					"id": "feed-1", "name": "Layer pellets", "currentQuantity": 3, "minimumQuantity": 10, "unit": "kg",
				})
			})

			It("should push one low stock notification and record it on the backend", func() {
				result, err := h.runner.RunCycle(ctx, domain.TriggerManual)
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Categories).To(HaveLen(len(domain.AllCategories)))
				Expect(categoryResult(result, domain.CategoryFeed).Dispatched).To(HaveLen(1))

				messages := h.pushSvc.Messages()
				Expect(messages).To(HaveLen(1))
				Expect(messages[0].To).To(Equal(pushToken))
				Expect(messages[0].Title).To(Equal("Low stock: Layer pellets"))
				Expect(messages[0].ChannelID).To(Equal(usecase.ChannelStock))
				Expect(messages[0].Data).To(HaveKeyWithValue("itemId", "feed-1"))

				_, recorded := h.backend.SentAt("feed-1")
				Expect(recorded).To(BeTrue())
			})

			It("should not alert again within the item cooldown", func() {
				_, err := h.runner.RunCycle(ctx, domain.TriggerAutomatic)
				Expect(err).NotTo(HaveOccurred())

				result, err := h.runner.RunCycle(ctx, domain.TriggerAutomatic)
				Expect(err).NotTo(HaveOccurred())
				Expect(categoryResult(result, domain.CategoryFeed).Skipped).To(Equal(1))
				Expect(h.pushSvc.Messages()).To(HaveLen(1))
			})
		})

		Context("when every category has something due", func() {
			BeforeEach(func() {
				h.backend.SetCollection("/pesticides", map[string]any{
					"id": "p-1", "name": "Copper spray", "quantity": 20, "minQuantity": 5, "expiryDate": daysFromNow(3),
				})
				h.backend.SetCollection("/tools", map[string]any{
					"_id": "t-1", "name": "Chainsaw", "nextMaintenanceDate": daysFromNow(2),
				})
				h.backend.SetCollection("/animals", map[string]any{
					"id": "a-1", "tagNumber": "COW-17", "nextVaccinationDate": daysFromNow(5), "breedingStatus": "in_heat",
				})
				h.backend.SetCollection("/harvests", map[string]any{
					"id": "h-1", "name": "Maize", "expiryDate": daysFromNow(1),
				})
			})

			It("should pick the alert kind and channel per category", func() {
				_, err := h.runner.RunCycle(ctx, domain.TriggerManual)
				Expect(err).NotTo(HaveOccurred())

				byItem := map[string]string{}
				for _, m := range h.pushSvc.Messages() {
					byItem[m.Data["itemId"]] = m.Data["kind"] + "/" + m.ChannelID
				}
				Expect(byItem).To(Equal(map[string]string{
					"p-1": string(domain.AlertExpiry) + "/" + usecase.ChannelStock,
					"t-1": string(domain.AlertMaintenance) + "/" + usecase.ChannelMaintenance,
					"a-1": string(domain.AlertVaccination) + "/" + usecase.ChannelAnimal,
					"h-1": string(domain.AlertExpiry) + "/" + usecase.ChannelStock,
				}))
			})
		})

		Context("when a category has more alerts than its window allows", func() {
			BeforeEach(func() {
				h.backend.SetCollection("/seeds",
					map[string]any{"id": "s-1", "name": "Wheat", "quantity": 0, "minimumQuantity": 5},
					map[string]any{"id": "s-2", "name": "Barley", "quantity": 1, "minimumQuantity": 5},
					map[string]any{"id": "s-3", "name": "Oats", "quantity": 2, "minimumQuantity": 5},
				)
			})

			It("should send at most two and skip the rest", func() {
				result, err := h.runner.RunCycle(ctx, domain.TriggerManual)
				Expect(err).NotTo(HaveOccurred())

				seeds := categoryResult(result, domain.CategorySeed)
				Expect(seeds.Alerts).To(Equal(3))
				Expect(seeds.Dispatched).To(HaveLen(usecase.MaxPerWindow))
				Expect(seeds.Skipped).To(Equal(1))
				Expect(h.pushSvc.Messages()).To(HaveLen(usecase.MaxPerWindow))
			})
		})
	})

	Describe("settings", func() {
		BeforeEach(func() {
			h.backend.SetCollection("/fertilizers", map[string]any{
				"id": "f-1", "name": "Urea", "quantity": 1, "minimumQuantity": 4, "expiryDate": daysFromNow(2),
			})
		})

		It("should follow settings stored on the backend", func() {
			h.backend.SetSettings(map[string]bool{"lowStockAlerts": false})

			_, err := h.runner.RunCycle(ctx, domain.TriggerManual)
			Expect(err).NotTo(HaveOccurred())

			messages := h.pushSvc.Messages()
			Expect(messages).To(HaveLen(1))
			Expect(messages[0].Data).To(HaveKeyWithValue("kind", string(domain.AlertExpiry)))
		})

		It("should skip scheduled checks once automatic alerts are turned off elsewhere", func() {
			h.backend.SetSettings(map[string]bool{"automaticStockAlerts": false})

			result, err := h.runner.RunCycle(ctx, domain.TriggerAutomatic)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.AutomaticDisabled).To(BeTrue())
			Expect(h.backend.Requests("/fertilizers")).To(BeZero())
			Expect(h.pushSvc.Messages()).To(BeEmpty())

			_, err = h.runner.RunCycle(ctx, domain.TriggerManual)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.pushSvc.Messages()).NotTo(BeEmpty())
		})

		It("should use locally saved settings when the backend has no settings endpoint", func() {
			h.backend.DisableSettings()
			off := domain.DefaultSettings()
			off.LowStockAlerts = false
			off.ExpiryAlerts = false
			Expect(h.settings.Save(ctx, off)).To(Succeed())

			_, err := h.runner.RunCycle(ctx, domain.TriggerManual)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.pushSvc.Messages()).To(BeEmpty())
			Expect(h.backend.Requests("/fertilizers")).To(BeZero(), "inactive categories are not fetched")
		})

		It("should sync saved settings to the backend", func() {
			off := domain.DefaultSettings()
			off.BreedingAlerts = false
			Expect(h.settings.Save(ctx, off)).To(Succeed())

			Expect(h.backend.Settings()).To(HaveKeyWithValue("breedingAlerts", false))
			Expect(h.settings.Load(ctx)).To(Equal(off))
		})
	})

	Describe("failure handling", func() {
		BeforeEach(func() {
			h.backend.SetCollection("/feeds", map[string]any{
				"id": "feed-1", "name": "Hay", "quantity": 1, "minimumQuantity": 10,
			})
		})

		It("should fall back to the generic stock endpoint", func() {
			h.backend.Fail("/feeds", http.StatusInternalServerError)

			result, err := h.runner.RunCycle(ctx, domain.TriggerManual)
			Expect(err).NotTo(HaveOccurred())

			feeds := categoryResult(result, domain.CategoryFeed)
			Expect(feeds.Err).NotTo(HaveOccurred())
			Expect(feeds.Dispatched).To(HaveLen(1))
			Expect(h.backend.Requests("/stock")).To(BeNumerically(">=", 1))
		})

		It("should skip only the failing category when both endpoints fail", func() {
			h.backend.Fail("/feeds", http.StatusInternalServerError)
			h.backend.Fail("/stock", http.StatusBadGateway)
			h.backend.SetCollection("/seeds", map[string]any{"id": "s-1", "name": "Rye", "quantity": 0, "minimumQuantity": 2})

			result, err := h.runner.RunCycle(ctx, domain.TriggerManual)
			Expect(err).NotTo(HaveOccurred())

			Expect(categoryResult(result, domain.CategoryFeed).Err).To(HaveOccurred())
			Expect(categoryResult(result, domain.CategorySeed).Dispatched).To(HaveLen(1))
		})

		It("should skip the whole check when signed out", func() {
			Expect(h.auth.Save("")).To(Succeed())

			result, err := h.runner.RunCycle(ctx, domain.TriggerAutomatic)
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Skipped).To(BeTrue())
			Expect(h.backend.Requests("/feeds")).To(BeZero())
			Expect(h.pushSvc.Messages()).To(BeEmpty())
		})

		It("should not record a send the push service rejected", func() {
			h.pushSvc.Unregister(pushToken)

			result, err := h.runner.RunCycle(ctx, domain.TriggerManual)
			Expect(err).NotTo(HaveOccurred())
			Expect(categoryResult(result, domain.CategoryFeed).Dispatched).To(BeEmpty())

			_, recorded := h.backend.SentAt("feed-1")
			Expect(recorded).To(BeFalse())
		})
	})

	Describe("device registration", func() {
		It("should register the cached push token", func() {
			h.devices.RegisterCached(ctx, "android")

			Expect(h.backend.Devices()).To(ConsistOf(HaveField("Token", pushToken)))
		})
	})
})
