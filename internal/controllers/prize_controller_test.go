package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	"lotero/internal/app"
	"lotero/internal/config"
	"lotero/internal/controllers"
	"lotero/internal/models"
	"lotero/internal/pkg/mail"
	"lotero/internal/routes"
	"lotero/internal/snapshot"
	"lotero/internal/tasks"
	"lotero/internal/testhelpers"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

type emptyMailbox struct{}

func (emptyMailbox) Search(context.Context, *time.Time) ([]mail.MessageRef, error) {
	return nil, nil
}

func (emptyMailbox) FetchFull(context.Context, string) (*mail.RawMessage, error) {
	return nil, nil
}

type brokenMailbox struct{}

func (brokenMailbox) Search(context.Context, *time.Time) ([]mail.MessageRef, error) {
	return nil, errors.New(`Get "https://gmail.googleapis.com/gmail/v1/users/me/messages": dial tcp 10.0.0.7:443: connection refused`)
}

func (brokenMailbox) FetchFull(context.Context, string) (*mail.RawMessage, error) {
	return nil, nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: "default", Type: task.Type()}, nil
}

func perform(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

var _ = Describe("PrizeController", func() {
	var (
		dbConn *gorm.DB
		a      *app.App
		router *gin.Engine
		queue  controllers.Enqueuer
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)

		cfg, err := config.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		cfg.Kafka.Brokers = nil

		dbConn = testhelpers.NewTestDB()
		a, err = app.New(context.Background(), cfg, app.Options{
			DB:        dbConn,
			Transport: emptyMailbox{},
			Storage:   &snapshot.FileStorage{Path: filepath.Join(GinkgoT().TempDir(), "backup.json")},
		})
		Expect(err).NotTo(HaveOccurred())

		queue = nil
	})

	JustBeforeEach(func() {
		router = routes.SetupRouter(a, queue)
	})

	AfterEach(func() {
		Expect(a.Close()).To(Succeed())
		testhelpers.CleanupDB(dbConn)
	})

	It("reports health", func() {
		resp := perform(router, http.MethodGet, "/health", nil)
		Expect(resp.Code).To(Equal(http.StatusOK))
		Expect(resp.Body.String()).To(MatchJSON(`{"status":"UP"}`))
	})

	Describe("GET /api/v1/prizes", func() {
		BeforeEach(func() {
			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "EURO000001", Game: models.GameEuromillones, ReceivedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "GORDO00001", Game: models.GameElGordo, ReceivedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)})
		})

		It("returns prizes newest first", func() {
			resp := perform(router, http.MethodGet, "/api/v1/prizes", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Prizes []models.Prize `json:"prizes"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Prizes).To(HaveLen(2))
			Expect(body.Prizes[0].Code).To(Equal("GORDO00001"))
		})

		It("filters by game slug", func() {
			resp := perform(router, http.MethodGet, "/api/v1/prizes?game=el-gordo", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				Prizes []models.Prize `json:"prizes"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.Prizes).To(HaveLen(1))
			Expect(body.Prizes[0].Game).To(Equal(models.GameElGordo))
		})

		It("rejects unknown games and bad dates", func() {
			Expect(perform(router, http.MethodGet, "/api/v1/prizes?game=lototurf", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(perform(router, http.MethodGet, "/api/v1/prizes?from=yesterday", nil).Code).To(Equal(http.StatusBadRequest))
		})

		It("returns one prize by code", func() {
			resp := perform(router, http.MethodGet, "/api/v1/prizes/EURO000001", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"code":"EURO000001"`))

			Expect(perform(router, http.MethodGet, "/api/v1/prizes/MISSING001", nil).Code).To(Equal(http.StatusNotFound))
		})

		It("clears everything only when confirmed", func() {
			Expect(perform(router, http.MethodDelete, "/api/v1/prizes", nil).Code).To(Equal(http.StatusBadRequest))
			Expect(perform(router, http.MethodDelete, "/api/v1/prizes?confirm=true", nil).Code).To(Equal(http.StatusNoContent))
			Expect(a.Store.Count(context.Background())).To(BeZero())
		})

		It("summarizes stats", func() {
			resp := perform(router, http.MethodGet, "/api/v1/stats", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))

			var body map[string]any
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("count", BeNumerically("==", 2)))
			Expect(body).To(HaveKeyWithValue("total", "9"))
			Expect(body["byGame"]).To(HaveLen(2))
		})
	})

	Describe("POST /api/v1/sync", func() {
		It("runs a pass inline without a queue", func() {
			resp := perform(router, http.MethodPost, "/api/v1/sync", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"found":0`))

			resp = perform(router, http.MethodGet, "/api/v1/syncs", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))

			var body struct {
				LastSync *time.Time       `json:"lastSync"`
				Syncs    []models.SyncLog `json:"syncs"`
			}
			Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
			Expect(body.LastSync).NotTo(BeNil())
			Expect(body.Syncs).To(HaveLen(1))
			Expect(body.Syncs[0].Status).To(Equal(models.SyncStatusSuccess))
		})

		Context("when the mailbox is unreachable", func() {
			BeforeEach(func() {
				Expect(a.Close()).To(Succeed())

				cfg, err := config.LoadConfig()
				Expect(err).NotTo(HaveOccurred())
				cfg.Kafka.Brokers = nil

				a, err = app.New(context.Background(), cfg, app.Options{DB: dbConn, Transport: brokenMailbox{}})
				Expect(err).NotTo(HaveOccurred())
			})

			It("answers with a generic error", func() {
				resp := perform(router, http.MethodPost, "/api/v1/sync", nil)
				Expect(resp.Code).To(Equal(http.StatusBadGateway))

				var body map[string]any
				Expect(json.Unmarshal(resp.Body.Bytes(), &body)).To(Succeed())
				Expect(body).To(HaveKeyWithValue("error", "Sync failed"))
				Expect(resp.Body.String()).NotTo(ContainSubstring("10.0.0.7"))
			})
		})

		Context("with a worker queue", func() {
			var fq *fakeQueue

			BeforeEach(func() {
				fq = &fakeQueue{}
				queue = fq
			})

			It("enqueues a sync task", func() {
				resp := perform(router, http.MethodPost, "/api/v1/sync", nil)
				Expect(resp.Code).To(Equal(http.StatusAccepted))
				Expect(fq.tasks).To(HaveLen(1))
				Expect(fq.tasks[0].Type()).To(Equal(tasks.TypeTaskSyncPrizes))
			})

			It("reports a task that is already queued", func() {
				fq.err = asynq.ErrDuplicateTask
				resp := perform(router, http.MethodPost, "/api/v1/sync", nil)
				Expect(resp.Code).To(Equal(http.StatusConflict))
			})
		})
	})

	Describe("snapshots", func() {
		It("exports and imports documents", func() {
			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "SNAP000001"})

			resp := perform(router, http.MethodGet, "/api/v1/snapshot", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))
			exported := resp.Body.Bytes()

			doc := snapshot.Document{
				Version: 1,
				Records: []models.Prize{testhelpers.BuildPrize(testhelpers.PrizeAttrs{Code: "SNAP000002"})},
			}
			payload, err := json.Marshal(doc)
			Expect(err).NotTo(HaveOccurred())

			resp = perform(router, http.MethodPost, "/api/v1/snapshot", payload)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"inserted":1`))

			resp = perform(router, http.MethodPost, "/api/v1/snapshot", exported)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"duplicates":1`))
		})

		It("rejects invalid documents", func() {
			resp := perform(router, http.MethodPost, "/api/v1/snapshot", []byte("{"))
			Expect(resp.Code).To(Equal(http.StatusBadRequest))
		})

		It("backs up and restores through the storage backend", func() {
			Expect(perform(router, http.MethodPost, "/api/v1/restore", nil).Code).To(Equal(http.StatusNotFound))

			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "BACKUP0001"})
			resp := perform(router, http.MethodPost, "/api/v1/backup", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"records":1`))

			resp = perform(router, http.MethodPost, "/api/v1/restore", nil)
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.String()).To(ContainSubstring(`"duplicates":1`))
		})
	})
})
