package wiki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client implements Remote and Uploader against a Confluence-style REST API.
// Only the narrow surface the engine needs is covered.
type Client struct {
	BaseURL  string
	SpaceKey string
	Username string
	APIToken string

	HTTP *http.Client
}

// NewClient builds a REST client for the given wiki.
func NewClient(baseURL, spaceKey, username, apiToken string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		SpaceKey: spaceKey,
		Username: username,
		APIToken: apiToken,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

type restPage struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Ancestors []struct {
		ID string `json:"id"`
	} `json:"ancestors"`
	Children struct {
		Attachment struct {
			Results []restAttachment `json:"results"`
		} `json:"attachment"`
	} `json:"children"`
}

type restAttachment struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Version struct {
		Number int       `json:"number"`
		When   time.Time `json:"when"`
	} `json:"version"`
	Links struct {
		Download string `json:"download"`
	} `json:"_links"`
}

func (p *restPage) toPage() *Page {
	page := &Page{
		ID:      p.ID,
		Title:   p.Title,
		Version: p.Version.Number,
		Storage: p.Body.Storage.Value,
	}
	if len(p.Ancestors) > 0 {
		page.ParentID = p.Ancestors[len(p.Ancestors)-1].ID
	}
	for _, att := range p.Children.Attachment.Results {
		page.Attachments = append(page.Attachments, Attachment{
			ID:          att.ID,
			Filename:    att.Title,
			Version:     att.Version.Number,
			When:        att.Version.When,
			DownloadURL: att.Links.Download,
		})
	}
	return page
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Username, c.APIToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.HTTP.Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}

	resp, err := c.do(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) FindPageByTitle(ctx context.Context, title, parentID string) (*Page, error) {
	if parentID != "" {
		children, err := c.GetChildren(ctx, parentID)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			if child.Title == title {
				return child, nil
			}
		}
		return nil, ErrNotFound
	}

	var result struct {
		Results []restPage `json:"results"`
	}
	path := fmt.Sprintf("/wiki/rest/api/content?spaceKey=%s&title=%s&expand=version",
		url.QueryEscape(c.SpaceKey), url.QueryEscape(title))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, ErrNotFound
	}
	return result.Results[0].toPage(), nil
}

func (c *Client) CreatePage(ctx context.Context, title, storage, parentID string) (*Page, error) {
	payload := map[string]any{
		"type":  "page",
		"title": title,
		"space": map[string]string{"key": c.SpaceKey},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          storage,
				"representation": "storage",
			},
		},
	}
	if parentID != "" {
		payload["ancestors"] = []map[string]string{{"id": parentID}}
	}

	var created restPage
	if err := c.doJSON(ctx, http.MethodPost, "/wiki/rest/api/content", payload, &created); err != nil {
		return nil, err
	}
	return created.toPage(), nil
}

func (c *Client) UpdatePage(ctx context.Context, id, title, storage string, newVersion int) (*Page, error) {
	payload := map[string]any{
		"type":    "page",
		"title":   title,
		"version": map[string]int{"number": newVersion},
		"body": map[string]any{
			"storage": map[string]string{
				"value":          storage,
				"representation": "storage",
			},
		},
	}

	var updated restPage
	if err := c.doJSON(ctx, http.MethodPut, "/wiki/rest/api/content/"+url.PathEscape(id), payload, &updated); err != nil {
		return nil, err
	}
	return updated.toPage(), nil
}

func (c *Client) GetPage(ctx context.Context, id string, expand []string) (*Page, error) {
	var fields []string
	for _, e := range expand {
		switch e {
		case "body":
			fields = append(fields, "body.storage")
		case "version":
			fields = append(fields, "version")
		case "attachments":
			fields = append(fields, "children.attachment")
		}
	}
	path := "/wiki/rest/api/content/" + url.PathEscape(id)
	if len(fields) > 0 {
		path += "?expand=" + url.QueryEscape(strings.Join(fields, ","))
	}

	var page restPage
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return page.toPage(), nil
}

func (c *Client) GetChildren(ctx context.Context, parentID string) ([]*Page, error) {
	var result struct {
		Results []restPage `json:"results"`
	}
	path := fmt.Sprintf("/wiki/rest/api/content/%s/child/page?limit=200&expand=version", url.PathEscape(parentID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	pages := make([]*Page, 0, len(result.Results))
	for i := range result.Results {
		pages = append(pages, result.Results[i].toPage())
	}
	return pages, nil
}

func (c *Client) DownloadAttachment(ctx context.Context, ref AttachmentRef) ([]byte, error) {
	download := ref.DownloadURL
	if download == "" {
		return nil, fmt.Errorf("attachment %s has no download link", ref.Filename)
	}
	if !strings.Contains(download, "://") {
		download = c.BaseURL + "/wiki" + download
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, download, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.Username, c.APIToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", ref.Filename, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Upload attaches a file to a page, replacing any previous attachment with
// the same filename.
func (c *Client) Upload(ctx context.Context, pageID, filename string, data []byte) (AttachmentRef, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return AttachmentRef{}, err
	}
	if _, err := part.Write(data); err != nil {
		return AttachmentRef{}, err
	}
	if err := writer.Close(); err != nil {
		return AttachmentRef{}, err
	}

	path := fmt.Sprintf("/wiki/rest/api/content/%s/child/attachment?allowDuplicated=false", url.PathEscape(pageID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, &buf)
	if err != nil {
		return AttachmentRef{}, err
	}
	req.SetBasicAuth(c.Username, c.APIToken)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "nocheck")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return AttachmentRef{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return AttachmentRef{}, fmt.Errorf("upload %s: status %d: %s", filename, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var result struct {
		Results []restAttachment `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || len(result.Results) == 0 {
		// Some backends return the attachment directly rather than a list.
		return AttachmentRef{PageID: pageID, Filename: filename}, nil
	}
	att := result.Results[0]
	return AttachmentRef{
		PageID:       pageID,
		AttachmentID: att.ID,
		Filename:     filename,
		DownloadURL:  att.Links.Download,
	}, nil
}
