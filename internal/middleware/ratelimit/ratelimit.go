package rateLimit

import (
	"net/http"
	"time"

	httprate "github.com/go-chi/httprate"
)

func Request() func(http.Handler) http.Handler {
	return limitByIP(5, time.Hour)
}

func Redeem() func(http.Handler) http.Handler {
	return limitByIP(10, 10*time.Minute)
}

func Me() func(http.Handler) http.Handler {
	return limitByIP(60, time.Minute)
}

func limitByIP(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(limit, window)
}
