package http

import (
	"bytes"
	"io"
	"net/http"

	"xpdash/internal/log"
)

// maxProxyBody bounds both the forwarded request and the relayed answer.
const maxProxyBody = 4 << 20

// handleProxySignIn forwards a Basic-authenticated sign-in to the platform so
// browser clients avoid its CORS policy.
func (s *Server) handleProxySignIn(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, s.deps.Auth.SignInURL(), log.ComponentAuth)
}

// handleProxyGraphQL forwards a bearer-authenticated GraphQL query.
func (s *Server) handleProxyGraphQL(w http.ResponseWriter, r *http.Request) {
	s.forward(w, r, s.deps.GraphQLEndpoint, log.ComponentGraphQL)
}

func (s *Server) forward(w http.ResponseWriter, r *http.Request, target, component string) {
	if rb := RequirePOST(r); rb != nil {
		rb.Write(w)
		return
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeJSONError(w, http.StatusUnauthorized, "Authorization header required")
		return
	}
	if target == "" {
		writeJSONError(w, http.StatusServiceUnavailable, "upstream not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxProxyBody))
	if err != nil {
		BadRequestError("Failed to read request body").Write(w)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.deps.Upstream.Do(req)
	if err != nil {
		log.NewStructuredLogger(s.logger).LogError(r.Context(), "Proxy request failed", err, component, log.OpQuery,
			log.Fields{log.FieldPath: r.URL.Path})
		writeJSONError(w, http.StatusBadGateway, "Failed to reach upstream service")
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, "Failed to read upstream response")
		return
	}

	s.logger.DebugContext(r.Context(), "Proxied request",
		log.FieldComponent, component,
		log.FieldPath, r.URL.Path,
		log.FieldStatusCode, resp.StatusCode)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}
