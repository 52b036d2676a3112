package middleware

import (
	"net/http"

	"github.com/companionly/booking-server-go/internal/httputil"
)

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}
