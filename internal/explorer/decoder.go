package explorer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/FACorreiaa/go-city-adventures/internal/types"
)

// Sink receives decoded relay envelopes in stream order.
type Sink interface {
	OnCard(card types.AdventureCard)
	OnImage(cardID, imageURL string)
	OnImageError(cardID string)
	OnComplete()
	OnStreamError(message string)
}

// Decoder reads newline-delimited relay envelopes and dispatches them to a
// Sink. Lines that do not parse as envelopes are skipped: a malformed line
// must never abort the stream, since later envelopes are still usable.
type Decoder struct {
	logger *slog.Logger
	sink   Sink
}

func NewDecoder(sink Sink, logger *slog.Logger) *Decoder {
	return &Decoder{
		logger: logger,
		sink:   sink,
	}
}

// Drain consumes r until EOF or ctx cancellation, decoding one envelope per
// line. Partial trailing data without a newline is still decoded, so a stream
// that ends mid-flush loses at most nothing. The ctx check runs before every
// dispatch: once cancelled, not even lines already buffered by the scanner
// reach the sink. Returns ctx.Err() on cancellation, otherwise the underlying
// read error, if any.
func (d *Decoder) Drain(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		d.dispatch(line)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return scanner.Err()
}

func (d *Decoder) dispatch(line string) {
	var env types.RelayEnvelope
	if err := json.Unmarshal([]byte(line), &env); err != nil {
		d.logger.Warn("Skipping malformed envelope line", slog.Any("error", err))
		return
	}

	switch env.Type {
	case types.EnvelopeCard:
		if env.Card == nil {
			d.logger.Warn("Card envelope without card payload, skipping")
			return
		}
		d.sink.OnCard(*env.Card)
	case types.EnvelopeImage:
		d.sink.OnImage(env.CardID, env.ImageURL)
	case types.EnvelopeImageError:
		d.sink.OnImageError(env.CardID)
	case types.EnvelopeComplete:
		d.sink.OnComplete()
	case types.EnvelopeError:
		d.sink.OnStreamError(env.Message)
	default:
		d.logger.Warn("Skipping envelope with unknown type", slog.String("type", env.Type))
	}
}
