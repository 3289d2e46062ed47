package profile_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Sadick14/ticket-flow/internal/core/datamodel"
	"github.com/Sadick14/ticket-flow/internal/profile"
	profilePostgres "github.com/Sadick14/ticket-flow/internal/profile/postgres"
	"github.com/Sadick14/ticket-flow/internal/transport"
	"github.com/Sadick14/ticket-flow/pkg/logger"
)

var _ = Describe("Profile Handler Integration", func() {
	var router chi.Router

	BeforeEach(func() {
		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(datamodel.All()...)).To(Succeed())

		service := profile.NewService(profilePostgres.NewProfileRepository(db), testTiers(), logger.Discard())
		handler := profile.NewHandler(transport.NewBaseHandler(logger.Discard()), service)

		router = chi.NewRouter()
		router.Post("/profiles", handler.CreateProfile)
		router.Get("/profiles", handler.ListProfiles)
		router.Get("/profiles/{creatorID}", handler.GetProfile)
		router.Patch("/profiles/{creatorID}", handler.UpdateProfile)
	})

	do := func(method, path string, body interface{}) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
		}
		req := httptest.NewRequest(method, path, &buf)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	It("creates and fetches a profile", func() {
		// Given
		w := do(http.MethodPost, "/profiles", map[string]interface{}{
			"creator_id":            "creator-1",
			"payout_cadence":        "weekly",
			"minimum_payout_amount": 2000,
		})
		Expect(w.Code).To(Equal(http.StatusCreated))

		// When
		w = do(http.MethodGet, "/profiles/creator-1", nil)

		// Then
		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(w.Header().Get("Content-Type")).To(ContainSubstring("application/json"))
		var got profile.Profile
		Expect(json.NewDecoder(w.Body).Decode(&got)).To(Succeed())
		Expect(got.PayoutCadence).To(Equal(profile.CadenceWeekly))
		Expect(got.MinimumPayoutAmount).To(Equal(int64(2000)))
	})

	It("returns 409 for a duplicate profile", func() {
		body := map[string]interface{}{"creator_id": "c", "payout_cadence": "daily"}
		Expect(do(http.MethodPost, "/profiles", body).Code).To(Equal(http.StatusCreated))

		w := do(http.MethodPost, "/profiles", body)

		Expect(w.Code).To(Equal(http.StatusConflict))
		Expect(w.Body.String()).To(ContainSubstring("PROFILE_EXISTS"))
	})

	It("returns 400 with field details for invalid input", func() {
		w := do(http.MethodPost, "/profiles", map[string]interface{}{"creator_id": "c", "payout_cadence": "hourly"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		Expect(w.Body.String()).To(ContainSubstring("payout_cadence"))
	})

	It("rejects unknown fields such as last_payout_at", func() {
		Expect(do(http.MethodPost, "/profiles", map[string]interface{}{"creator_id": "c", "payout_cadence": "daily"}).Code).To(Equal(http.StatusCreated))

		w := do(http.MethodPatch, "/profiles/c", map[string]interface{}{"last_payout_at": "2025-01-01T00:00:00Z"})

		Expect(w.Code).To(Equal(http.StatusBadRequest))
	})

	It("patches a profile", func() {
		Expect(do(http.MethodPost, "/profiles", map[string]interface{}{"creator_id": "c", "payout_cadence": "daily"}).Code).To(Equal(http.StatusCreated))

		w := do(http.MethodPatch, "/profiles/c", map[string]interface{}{"verified": true, "minimum_payout_amount": 500})

		Expect(w.Code).To(Equal(http.StatusOK))
		var got profile.Profile
		Expect(json.NewDecoder(w.Body).Decode(&got)).To(Succeed())
		Expect(got.Verified).To(BeTrue())
		Expect(got.MinimumPayoutAmount).To(Equal(int64(500)))
	})

	It("returns 404 for a missing profile", func() {
		w := do(http.MethodGet, "/profiles/nobody", nil)

		Expect(w.Code).To(Equal(http.StatusNotFound))
	})

	It("lists profiles", func() {
		Expect(do(http.MethodPost, "/profiles", map[string]interface{}{"creator_id": "a", "payout_cadence": "daily"}).Code).To(Equal(http.StatusCreated))

		w := do(http.MethodGet, "/profiles", nil)

		var got profile.ProfilesResponse
		Expect(json.NewDecoder(w.Body).Decode(&got)).To(Succeed())
		Expect(got.Profiles).To(HaveLen(1))
	})
})
