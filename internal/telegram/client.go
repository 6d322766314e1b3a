// ABOUTME: Telegram Bot API client for sending text, documents and status messages
// ABOUTME: Also resolves the bot's own identity and downloads voice files

package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rkartside/docbridge/internal/chat"
)

const defaultBaseURL = "https://api.telegram.org"

// Client talks to the Telegram Bot API. Safe for concurrent use.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Bot API client. baseURL is overridable for tests;
// empty means the production endpoint.
func NewClient(token, baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
		logger:  logger.With("component", "telegram"),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

// GetMe fetches the bot's own identity, needed to recognize mentions and
// replies addressed to it.
func (c *Client) GetMe(ctx context.Context) (chat.Identity, error) {
	raw, err := c.call(ctx, "getMe", nil)
	if err != nil {
		return chat.Identity{}, err
	}
	var me User
	if err := json.Unmarshal(raw, &me); err != nil {
		return chat.Identity{}, fmt.Errorf("decoding getMe result: %w", err)
	}
	return chat.Identity{UserID: me.ID, Username: me.Username}, nil
}

// SendMessage sends a Markdown-formatted reply and returns the sent
// message's ID so it can be registered against the conversation root.
func (c *Client) SendMessage(ctx context.Context, chatID, replyTo int64, text string) (int64, error) {
	return c.send(ctx, chatID, replyTo, text, "Markdown")
}

// SendStatus sends a plain transient status message (no formatting), meant
// to be deleted once the underlying work finishes.
func (c *Client) SendStatus(ctx context.Context, chatID, replyTo int64, text string) (int64, error) {
	return c.send(ctx, chatID, replyTo, text, "")
}

func (c *Client) send(ctx context.Context, chatID, replyTo int64, text, parseMode string) (int64, error) {
	body := map[string]any{
		"chat_id":             chatID,
		"text":                text,
		"reply_to_message_id": replyTo,
	}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	raw, err := c.call(ctx, "sendMessage", body)
	if err != nil {
		return 0, err
	}
	return messageID(raw)
}

// DeleteMessage removes a previously sent message. Callers typically ignore
// failures: a status message that outlives its purpose is cosmetic.
func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	_, err := c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	})
	return err
}

// SendDocument uploads a file as a document reply and returns the sent
// message's ID.
func (c *Client) SendDocument(ctx context.Context, chatID, replyTo int64, filename string, content []byte) (int64, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return 0, fmt.Errorf("writing multipart field: %w", err)
	}
	if err := w.WriteField("reply_to_message_id", strconv.FormatInt(replyTo, 10)); err != nil {
		return 0, fmt.Errorf("writing multipart field: %w", err)
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return 0, fmt.Errorf("creating multipart file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return 0, fmt.Errorf("writing document content: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if err != nil {
		return 0, fmt.Errorf("building sendDocument request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	raw, err := c.do(req, "sendDocument")
	if err != nil {
		return 0, err
	}
	return messageID(raw)
}

// DownloadVoiceFile fetches the raw bytes of a voice-note attachment.
func (c *Client) DownloadVoiceFile(ctx context.Context, fileID string) ([]byte, error) {
	raw, err := c.call(ctx, "getFile", map[string]any{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decoding getFile result: %w", err)
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building file download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading voice file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice file download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading voice file: %w", err)
	}
	c.logger.Debug("voice file downloaded", "path", file.FilePath, "bytes", len(data))
	return data, nil
}

func (c *Client) call(ctx context.Context, method string, body map[string]any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s request: %w", method, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), reader)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", method, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, method)
}

func (c *Client) do(req *http.Request, method string) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	var api apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&api); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", method, err)
	}
	if !api.OK {
		return nil, fmt.Errorf("%s failed: %s", method, api.Description)
	}
	return api.Result, nil
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func messageID(raw json.RawMessage) (int64, error) {
	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decoding sent message: %w", err)
	}
	return result.MessageID, nil
}
