package receipt_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/receipt-tracker/internal/extraction"
	"github.com/zombor/receipt-tracker/internal/receipt"
	"github.com/zombor/receipt-tracker/internal/scanning"
)

// fakeAnalyzer stands in for a model and answers with a fixed extraction
type fakeAnalyzer struct {
	result scanning.Result
	images []image.Image
}

func (f *fakeAnalyzer) Analyze(_ context.Context, img image.Image, _ string) scanning.Result {
	f.images = append(f.images, img)
	return f.result
}

func (f *fakeAnalyzer) Close() error {
	return nil
}

func pngBytes() []byte {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.NRGBA{R: 200, A: 255})
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Integration", func() {
	var (
		tempDir  string
		db       receipt.DB
		store    *receipt.LocalStorage
		analyzer *fakeAnalyzer
		handle   *scanning.Handle
		server   *receipt.Server
		ghServer *ghttp.Server
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		var err error
		db, err = receipt.NewBoltDB(filepath.Join(tempDir, "test.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = receipt.NewLocalStorage(filepath.Join(tempDir, "receipts"))
		Expect(err).NotTo(HaveOccurred())

		analyzer = &fakeAnalyzer{result: scanning.Success(scanning.RawExtraction{
			"menu": []any{
				map[string]any{"nm": "Corner Cafe"},
				map[string]any{"nm": "Espresso", "price": json.Number("3.00"), "cnt": json.Number("1")},
			},
			"total": map[string]any{"total_price": "$42.50"},
			"meta":  map[string]any{"date": "03/20/2024"},
		})}
		handle = scanning.Load(func() (scanning.Analyzer, error) { return analyzer, nil })

		ghServer = ghttp.NewServer()
	})

	JustBeforeEach(func() {
		pipeline := extraction.NewPipeline(extraction.Config{DefaultCategory: "Dining"})
		service := receipt.NewService(db, store, handle, scanning.NewDecoder(), pipeline)
		server = receipt.NewServer(service)
	})

	AfterEach(func() {
		ghServer.Close()
		db.Close()
	})

	post := func(filename string, data []byte) *http.Response {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		ghServer.AppendHandlers(server.ServeHTTP)
		resp, err := http.Post(ghServer.URL()+"/api/receipts", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	It("should upload a receipt, extract it, and save it", func() {
		resp := post("Receipt Photo.png", pngBytes())
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var upload receipt.Upload
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(respBody, &upload)).To(Succeed())

		Expect(upload.Receipt.Vendor).To(Equal("Corner Cafe"))
		Expect(upload.Receipt.Amount).To(Equal(42.5))
		Expect(upload.Receipt.TransactionDate.Format("2006-01-02")).To(Equal("2024-03-20"))
		Expect(upload.Receipt.CategoryOrEmpty()).To(Equal("Dining"))

		By("handing the model an opaque image")
		Expect(analyzer.images).To(HaveLen(1))
		Expect(analyzer.images[0]).To(BeAssignableToTypeOf(&image.RGBA{}))

		By("keeping the file in storage")
		data, err := store.Get(context.Background(), upload.Receipt.StoragePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(Equal(pngBytes()))

		By("persisting the record")
		saved, err := db.GetReceipt(upload.Receipt.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Vendor).To(Equal("Corner Cafe"))
		Expect(saved.FileName).To(Equal("Receipt Photo.png"))
	})

	When("the model could not be loaded", func() {
		BeforeEach(func() {
			handle = scanning.Load(func() (scanning.Analyzer, error) {
				return nil, errors.New("missing api key")
			})
		})

		It("should refuse uploads without writing anything", func() {
			resp := post("receipt.png", pngBytes())
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))

			receipts, err := db.ListReceipts()
			Expect(err).NotTo(HaveOccurred())
			Expect(receipts).To(BeEmpty())
			Expect(filepath.Join(tempDir, "receipts")).To(BeADirectory())
			entries, err := filepath.Glob(filepath.Join(tempDir, "receipts", "*"))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})

	When("the upload is not an image", func() {
		It("should reject it and remove the stored file", func() {
			resp := post("receipt.png", []byte("definitely not a png"))
			Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
			Expect(analyzer.images).To(BeEmpty())

			entries, err := filepath.Glob(filepath.Join(tempDir, "receipts", "*"))
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})
})
