package snapshot_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"lotero/internal/models"
	"lotero/internal/snapshot"
	"lotero/internal/store"
	"lotero/internal/testhelpers"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var _ = Describe("Snapshotter", func() {
	var (
		dbConn  *gorm.DB
		s       *store.Store
		storage *snapshot.FileStorage
		snap    *snapshot.Snapshotter
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dbConn = testhelpers.NewTestDB()
		s = store.New(dbConn)
		storage = &snapshot.FileStorage{Path: filepath.Join(GinkgoT().TempDir(), "backup", "lotero.json")}
		snap = snapshot.New(s, storage)
	})

	AfterEach(func() {
		testhelpers.CleanupDB(dbConn)
	})

	Describe("Export", func() {
		It("writes version, records and config", func() {
			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "CUZWKLF25934", Amount: "1234.56"})
			Expect(s.SetWatermark(ctx, time.Date(2026, 2, 4, 9, 0, 0, 0, time.UTC))).To(Succeed())

			doc, err := snap.Export(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Version).To(Equal(snapshot.Version))
			Expect(doc.Records).To(HaveLen(1))
			Expect(doc.Config).To(HaveLen(1))
			Expect(doc.Config[0].Key).To(Equal(models.ConfigKeyLastSync))

			data, err := snapshot.Encode(doc)
			Expect(err).NotTo(HaveOccurred())

			var raw map[string]any
			Expect(json.Unmarshal(data, &raw)).To(Succeed())
			Expect(raw).To(HaveKey("version"))
			Expect(raw).To(HaveKey("exportedAt"))
			Expect(raw).To(HaveKey("records"))
			Expect(raw).To(HaveKey("config"))

			record := raw["records"].([]any)[0].(map[string]any)
			Expect(record).To(HaveKeyWithValue("code", "CUZWKLF25934"))
			Expect(record).To(HaveKey("sourceMessageId"))
			Expect(record).To(HaveKey("receivedAt"))
		})

		It("exports an empty store as empty arrays", func() {
			doc, err := snap.Export(ctx)
			Expect(err).NotTo(HaveOccurred())

			data, err := snapshot.Encode(doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring(`"records": []`))
			Expect(string(data)).To(ContainSubstring(`"config": []`))
		})
	})

	Describe("Import", func() {
		It("round-trips into an empty store", func() {
			group := "Oficina"
			p := testhelpers.BuildPrize(testhelpers.PrizeAttrs{Code: "ROUNDTRIP01", Amount: "12.50"})
			p.Group = &group
			_, err := s.InsertUnique(ctx, &p)
			Expect(err).NotTo(HaveOccurred())
			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "ROUNDTRIP02", Game: models.GameQuiniela})

			doc, err := snap.Export(ctx)
			Expect(err).NotTo(HaveOccurred())
			data, err := snapshot.Encode(doc)
			Expect(err).NotTo(HaveOccurred())

			otherDB := testhelpers.NewTestDB()
			defer testhelpers.CleanupDB(otherDB)
			other := store.New(otherDB)

			decoded, err := snapshot.Decode(data)
			Expect(err).NotTo(HaveOccurred())
			res, err := snapshot.New(other, nil).Import(ctx, decoded)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Inserted).To(Equal(2))

			original, err := s.GetAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			imported, err := other.GetAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(imported).To(HaveLen(len(original)))

			for i := range original {
				Expect(imported[i].Code).To(Equal(original[i].Code))
				Expect(imported[i].Game).To(Equal(original[i].Game))
				Expect(imported[i].Amount.Equal(original[i].Amount)).To(BeTrue())
				Expect(imported[i].ReceivedAt.Equal(original[i].ReceivedAt)).To(BeTrue())
				Expect(imported[i].Group).To(Equal(original[i].Group))
			}
		})

		It("never overwrites an existing code", func() {
			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "KEEPME0001", Amount: "1"})

			doc := &snapshot.Document{
				Version: 1,
				Records: []models.Prize{
					testhelpers.BuildPrize(testhelpers.PrizeAttrs{Code: "KEEPME0001", Amount: "500"}),
					testhelpers.BuildPrize(testhelpers.PrizeAttrs{Code: "NEWONE0001", Amount: "2"}),
				},
			}

			res, err := snap.Import(ctx, doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Inserted).To(Equal(1))
			Expect(res.Duplicates).To(Equal(1))

			kept, err := s.GetByCode(ctx, "KEEPME0001")
			Expect(err).NotTo(HaveOccurred())
			Expect(kept.Amount.Equal(decimal.NewFromInt(1))).To(BeTrue())
		})

		It("counts records without a code or amount as invalid", func() {
			noCode := testhelpers.BuildPrize(testhelpers.PrizeAttrs{})
			noCode.Code = ""
			zero := testhelpers.BuildPrize(testhelpers.PrizeAttrs{Code: "ZERO000001"})
			zero.Amount = decimal.Zero

			res, err := snap.Import(ctx, &snapshot.Document{Records: []models.Prize{noCode, zero}})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Invalid).To(Equal(2))
			Expect(s.Count(ctx)).To(BeZero())
		})

		It("only imports config keys that are absent", func() {
			Expect(s.SetConfig(ctx, "theme", "dark")).To(Succeed())

			res, err := snap.Import(ctx, &snapshot.Document{Config: []snapshot.ConfigPair{
				{Key: "theme", Value: json.RawMessage(`"light"`)},
				{Key: "currency", Value: json.RawMessage(`"EUR"`)},
			}})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Config).To(Equal(1))

			var theme, currency string
			_, err = s.GetConfig(ctx, "theme", &theme)
			Expect(err).NotTo(HaveOccurred())
			_, err = s.GetConfig(ctx, "currency", &currency)
			Expect(err).NotTo(HaveOccurred())
			Expect(theme).To(Equal("dark"))
			Expect(currency).To(Equal("EUR"))
		})

		It("exports numeric and boolean config it imported", func() {
			_, err := snap.Import(ctx, &snapshot.Document{Config: []snapshot.ConfigPair{
				{Key: "pageSize", Value: json.RawMessage(`20`)},
				{Key: "autoBackup", Value: json.RawMessage(`false`)},
			}})
			Expect(err).NotTo(HaveOccurred())

			doc, err := snap.Export(ctx)
			Expect(err).NotTo(HaveOccurred())

			values := map[string]string{}
			for _, pair := range doc.Config {
				values[pair.Key] = string(pair.Value)
			}
			Expect(values).To(HaveKeyWithValue("pageSize", "20"))
			Expect(values).To(HaveKeyWithValue("autoBackup", "false"))
		})

		It("announces the import", func() {
			var events []store.Event
			s.Subscribe(func(e store.Event) { events = append(events, e) })

			_, err := snap.Import(ctx, &snapshot.Document{Records: []models.Prize{
				testhelpers.BuildPrize(testhelpers.PrizeAttrs{Code: "EVENTIMP01"}),
			}})
			Expect(err).NotTo(HaveOccurred())

			Expect(events).To(HaveLen(2))
			Expect(events[1].Kind).To(Equal(store.EventImported))
			Expect(events[1].Count).To(Equal(1))
		})
	})

	Describe("Backup and Restore", func() {
		It("restores what was backed up", func() {
			testhelpers.CreatePrize(dbConn, testhelpers.PrizeAttrs{Code: "BACKUP0001"})

			_, err := snap.Backup(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Clear(ctx)).To(Succeed())

			res, err := snap.Restore(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Inserted).To(Equal(1))

			_, err = s.GetByCode(ctx, "BACKUP0001")
			Expect(err).NotTo(HaveOccurred())
		})

		It("returns ErrNoBackup before the first backup", func() {
			_, err := snap.Restore(ctx)
			Expect(err).To(MatchError(snapshot.ErrNoBackup))
		})

		It("fails without a backend", func() {
			_, err := snapshot.New(s, nil).Backup(ctx)
			Expect(err).To(HaveOccurred())
			Expect(snapshot.New(s, nil).HasStorage()).To(BeFalse())
		})
	})

	It("rejects malformed documents", func() {
		_, err := snapshot.Decode([]byte("{not json"))
		Expect(err).To(HaveOccurred())
	})
})
