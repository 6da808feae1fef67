package gateway

import (
	"crypto/subtle"
	"net/http"

	"github.com/CosmoTheDev/anonscan/internal/anonscan"
	"github.com/CosmoTheDev/anonscan/internal/auth"
)

// handleWarmCache runs the warmer once. When a cron secret is configured
// the caller must present it as a bearer token. The answer is always 200
// with one outcome per repository.
func (gw *Gateway) handleWarmCache(w http.ResponseWriter, r *http.Request) {
	if secret := gw.cfg.Warmer.CronSecret; secret != "" {
		tok, err := auth.BearerToken(r)
		if err != nil || subtle.ConstantTimeCompare([]byte(tok), []byte(secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "Unauthorized", anonscan.CodeUnauthorized)
			return
		}
	}
	writeJSON(w, http.StatusOK, gw.warmer.Run(r.Context()))
}
