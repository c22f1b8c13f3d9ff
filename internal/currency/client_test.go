package currency_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	"github.com/frahmantamala/expense-approval/internal"
	"github.com/frahmantamala/expense-approval/internal/currency"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

var _ = ginkgo.Describe("Client", func() {
	var (
		server *httptest.Server
		client *currency.Client
	)

	ginkgo.BeforeEach(func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/rates/USD", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"base":"USD","rates":{"USD":1,"EUR":0.92,"IDR":15500.5}}`))
		})
		mux.HandleFunc("/rates/XXX", func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		mux.HandleFunc("/rates/BRK", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		mux.HandleFunc("/countries/name/Indonesia", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"name":{"common":"Indonesia"},"currencies":{"IDR":{"name":"Indonesian rupiah","symbol":"Rp"}}}]`))
		})
		mux.HandleFunc("/countries/name/Panama", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"name":{"common":"Panama"},"currencies":{"USD":{"symbol":"$"},"PAB":{"symbol":"B/."}}}]`))
		})
		mux.HandleFunc("/countries/name/Atlantis", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":404,"message":"Not Found"}`))
		})
		server = httptest.NewServer(mux)

		client = currency.NewClient(currency.ClientConfig{
			RatesAPIURL:     server.URL + "/rates/",
			CountriesAPIURL: server.URL + "/countries",
		}, testLogger())
	})

	ginkgo.AfterEach(func() {
		server.Close()
	})

	ginkgo.Describe("FetchRates", func() {
		ginkgo.It("should decode every quoted rate", func() {
			rates, err := client.FetchRates(context.Background(), "USD")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rates).To(gomega.HaveLen(3))
			gomega.Expect(rates["EUR"].String()).To(gomega.Equal("0.92"))
			gomega.Expect(rates["IDR"].String()).To(gomega.Equal("15500.5"))
		})

		ginkgo.It("should map unknown bases to ErrUnsupportedCurrency", func() {
			_, err := client.FetchRates(context.Background(), "XXX")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrUnsupportedCurrency))
		})

		ginkgo.It("should report upstream failures", func() {
			_, err := client.FetchRates(context.Background(), "BRK")
			gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("status 503")))
		})
	})

	ginkgo.Describe("LookupCountry", func() {
		ginkgo.It("should return the country's currency and symbol", func() {
			info, err := client.LookupCountry(context.Background(), "Indonesia")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(info.Name).To(gomega.Equal("Indonesia"))
			gomega.Expect(info.CurrencyCode).To(gomega.Equal("IDR"))
			gomega.Expect(info.CurrencySymbol).To(gomega.Equal("Rp"))
		})

		ginkgo.It("should pick the first code for multi-currency countries", func() {
			info, err := client.LookupCountry(context.Background(), "Panama")

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(info.CurrencyCode).To(gomega.Equal("PAB"))
		})

		ginkgo.It("should map 404 to ErrCountryNotFound", func() {
			_, err := client.LookupCountry(context.Background(), "Atlantis")
			gomega.Expect(err).To(gomega.MatchError(internal.ErrCountryNotFound))
		})
	})
})
