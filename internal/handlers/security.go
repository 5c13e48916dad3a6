package handlers

import "net/http"

// SecurityHeaders sets baseline security headers for all responses.
// Frame embedding stays allowed: the admin surface runs inside the
// Shopify admin iframe.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Content-Security-Policy", "frame-ancestors https://*.myshopify.com https://admin.shopify.com")

		next.ServeHTTP(w, r)
	})
}
