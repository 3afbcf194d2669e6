package chi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/colinloretz/railsconf-webhooks/providers"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

/* Ingestion endpoint: one handler shared by all configured providers,
 * verification strategy selected per request from the provider table.
 *
 * Responses carry no body. The sender only needs the status code:
 * 200 accepted+enqueued, 400 verification rejection, 404 unknown provider,
 * 413 oversized body, 500 persistence or enqueue failure (sender retries).
 */

// postWebhook handles POST /webhooks/{provider}
func postWebhook(service inbound.UseCase, loader *providers.Loader, maxBodyBytes int64, logger zerolog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")

		provider, err := loader.Get(name)
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		/* Bound memory before anything else touches the body. An oversized
		 * delivery is rejected without ever running verification.
		 */
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		/* Verification runs before any persistence. A rejected delivery
		 * leaves no record and is terminal for this attempt; the sender
		 * retries per its own policy.
		 */
		if err := provider.Strategy().Verify(body, r.Header, time.Now()); err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("webhook verification rejected")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		headers := make(map[string]string)
		for key, values := range r.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}

		if _, err := service.Receive(r.Context(), name, body, headers); err != nil {
			logger.Error().Err(err).Str("provider", name).Msg("recording webhook failed")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
}
