package exchange

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var httpClient = &http.Client{Timeout: 10 * time.Second}

type rateSource struct {
	name    string
	url     string
	extract func(map[string]interface{}) float64
}

func kesRate(data map[string]interface{}) float64 {
	rates, ok := data["rates"].(map[string]interface{})
	if !ok {
		return 0
	}
	rate, _ := rates["KES"].(float64)
	return rate
}

var sources = []rateSource{
	{name: "open.er-api.com", url: "https://open.er-api.com/v6/latest/USD", extract: kesRate},
	{name: "exchangerate.host", url: "https://api.exchangerate.host/latest?base=USD&symbols=KES", extract: kesRate},
	{name: "frankfurter.app", url: "https://api.frankfurter.app/latest?from=USD&to=KES", extract: kesRate},
}

// GetUSDToKES answers with the current USD to KES rate, falling through the
// configured sources until one responds.
func GetUSDToKES(c *gin.Context) {
	for _, source := range sources {
		rate, err := fetchRate(source)
		if err != nil {
			log.Printf("Exchange source %s failed: %v", source.name, err)
			continue
		}
		if rate > 0 {
			c.JSON(http.StatusOK, gin.H{"success": true, "rate": rate})
			return
		}
	}

	c.JSON(http.StatusBadGateway, gin.H{
		"success": false,
		"message": "Failed to fetch exchange rate from all sources",
	})
}

func fetchRate(source rateSource) (float64, error) {
	resp, err := httpClient.Get(source.url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var data map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, err
	}

	return source.extract(data), nil
}

func RegisterExchangeRoutes(r *gin.Engine) {
	r.GET("/exchange/usd-to-kes", GetUSDToKES)
}
