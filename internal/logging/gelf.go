package logging

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGELFHandler returns a JSON handler shipping records to a Graylog GELF
// UDP input at address. The returned closer releases the socket.
func NewGELFHandler(address string, level slog.Leveler) (slog.Handler, io.Closer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, nil, fmt.Errorf("creating gelf writer for %s: %w", address, err)
	}
	w.Facility = InstrumentationName

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return h, w, nil
}
