package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/competitor-intel/internal/model"
	"github.com/sells-group/competitor-intel/pkg/anthropic"
)

// anglePrompt is the shared system prompt for angle writing. It is cached
// upstream so a sweep over many gaps pays for it once.
const anglePrompt = `You are a competitive positioning copywriter. Given one
competitive gap (what competitors lack, what the market asks for) and the
client's own value-proposition claims, write ONE sentence of sales-ready
"your angle" copy the client can lead with. Be concrete and direct. Do not
mention competitor names. Reply with the sentence only, no preamble.`

const defaultAngleModel = "claude-haiku-4-5-20251001"

// ModelAngleWriter writes gap angles with the messages API, using a cached
// system prompt.
type ModelAngleWriter struct {
	client anthropic.Client
	model  string
}

// NewModelAngleWriter creates an angle writer. An empty model selects the
// default.
func NewModelAngleWriter(client anthropic.Client, model string) *ModelAngleWriter {
	if model == "" {
		model = defaultAngleModel
	}
	return &ModelAngleWriter{client: client, model: model}
}

// WriteAngle implements AngleWriter.
func (w *ModelAngleWriter) WriteAngle(ctx context.Context, gap *model.Gap, uvpClaims []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Gap type: %s\n", gap.GapType)
	fmt.Fprintf(&b, "What competitors lack: %s\n", gap.Absence)
	fmt.Fprintf(&b, "What the market asks for: %s\n", gap.Demand)
	if len(uvpClaims) > 0 {
		fmt.Fprintf(&b, "Client value-prop claims: %s\n", strings.Join(uvpClaims, "; "))
	}
	for i, p := range gap.Provenance {
		if i == 3 {
			break
		}
		fmt.Fprintf(&b, "Evidence: %q\n", p.Quote)
	}

	temp := 0.7
	resp, err := w.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       w.model,
		MaxTokens:   200,
		System:      anthropic.BuildCachedSystemBlocks(anglePrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: b.String()}},
		Temperature: &temp,
	})
	if err != nil {
		return "", eris.Wrap(err, "synthesis: write angle")
	}
	resp.Usage.LogCost(w.model, "angle")

	angle := strings.TrimSpace(resp.Text())
	if angle == "" {
		return "", eris.New("synthesis: empty angle response")
	}
	return angle, nil
}
