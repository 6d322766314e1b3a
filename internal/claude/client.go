// ABOUTME: HTTP client for the Anthropic Messages and Files APIs
// ABOUTME: Invokes the document-generation skill inside a code-execution container

package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-sonnet-4-5-20250929"
	defaultMaxTokens = 4096

	apiVersion    = "2023-06-01"
	messagesBetas = "code-execution-2025-08-25,skills-2025-10-02"
	filesBeta     = "files-api-2025-04-14"
)

// systemPrompt steers the assistant toward generating the business documents
// this bot exists for. Kept in Spanish: that is the language of the chats.
const systemPrompt = `Eres el asistente de documentos de RK ArtSide SRL. Generas cotizaciones, presupuestos y recibos de pago.

## Comportamiento

1. Si tienes toda la información, genera el documento inmediatamente
2. Solo pregunta si hay ambigüedad real
3. Sé breve - es Telegram

## Qué necesitas para cada documento

Cotización/Presupuesto:
- Nombre del cliente
- Items/servicios con cantidades y precios
- Si incluye ITBIS (si no se menciona, pregunta)

Recibo:
- Nombre del cliente
- Monto
- Concepto

## Cuando generes

1. Verifica la matemática
2. Genera el PDF usando el skill rk-artside-documents
3. Envía el documento con un resumen breve

## Notas

- Moneda: RD$ (Pesos Dominicanos)
- Si el usuario da toda la info, actúa. No confirmes si no es necesario.
- Solo pregunta lo que realmente falta.`

// ClientConfig configures the API client. Zero values fall back to defaults;
// only APIKey and SkillID are required.
type ClientConfig struct {
	APIKey    string
	SkillID   string
	Model     string
	MaxTokens int
	BaseURL   string
}

// Client talks to the Anthropic API. It is safe for concurrent use.
type Client struct {
	cfg    ClientConfig
	http   *http.Client
	logger *slog.Logger
}

// NewClient creates an API client for the given configuration.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 5 * time.Minute},
		logger: logger.With("component", "claude"),
	}
}

type containerParam struct {
	ID     string       `json:"id,omitempty"`
	Skills []skillParam `json:"skills"`
}

type skillParam struct {
	Type    string `json:"type"`
	SkillID string `json:"skill_id"`
	Version string `json:"version"`
}

type toolParam struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type messageRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	System    string         `json:"system"`
	Container containerParam `json:"container"`
	Messages  []Turn         `json:"messages"`
	Tools     []toolParam    `json:"tools"`
}

// CreateMessage performs one invocation against the Messages API. The turn
// sequence is sent as-is; containerID, when non-empty, asks the service to
// reuse prior execution state. systemExtra is appended to the base system
// prompt for per-exchange context such as document numbering.
func (c *Client) CreateMessage(ctx context.Context, turns []Turn, containerID, systemExtra string) (*MessageResponse, error) {
	req := messageRequest{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		System:    systemPrompt + systemExtra,
		Container: containerParam{
			ID: containerID,
			Skills: []skillParam{
				{Type: "custom", SkillID: c.cfg.SkillID, Version: "latest"},
			},
		},
		Messages: turns,
		Tools: []toolParam{
			{Type: "code_execution_20250825", Name: "code_execution"},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding message request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building message request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.cfg.APIKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)
	httpReq.Header.Set("Anthropic-Beta", messagesBetas)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling messages API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError("messages", resp)
	}

	var out MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding message response: %w", err)
	}
	return &out, nil
}

// DownloadFile retrieves a generated artifact's filename and raw bytes via
// the Files API.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (string, []byte, error) {
	var meta struct {
		Filename string `json:"filename"`
	}
	if err := c.filesGet(ctx, "/v1/files/"+fileID, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(&meta)
	}); err != nil {
		return "", nil, fmt.Errorf("retrieving file metadata: %w", err)
	}

	var data []byte
	if err := c.filesGet(ctx, "/v1/files/"+fileID+"/content", func(r io.Reader) error {
		var err error
		data, err = io.ReadAll(r)
		return err
	}); err != nil {
		return "", nil, fmt.Errorf("downloading file content: %w", err)
	}

	c.logger.Debug("file downloaded", "file_id", fileID, "filename", meta.Filename, "bytes", len(data))
	return meta.Filename, data, nil
}

func (c *Client) filesGet(ctx context.Context, path string, read func(io.Reader) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Api-Key", c.cfg.APIKey)
	req.Header.Set("Anthropic-Version", apiVersion)
	req.Header.Set("Anthropic-Beta", filesBeta)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError("files", resp)
	}
	return read(resp.Body)
}

func apiError(api string, resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s API returned %d: %s", api, resp.StatusCode, string(snippet))
}
