package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// StoredFile is what the blob store reports back after an upload.
type StoredFile struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// ObjectStorage is the blob-store collaborator the file handlers depend on.
type ObjectStorage interface {
	Upload(filename string, content io.Reader) (*StoredFile, error)
	Delete(publicID string) error
	Rename(publicID, newName string) (*StoredFile, error)
}

// HTTPStorage talks to the configured media store over its REST API.
type HTTPStorage struct {
	client *http.Client
}

func NewHTTPStorage() *HTTPStorage {
	return &HTTPStorage{client: &http.Client{Timeout: 30 * time.Second}}
}

func (s *HTTPStorage) Upload(filename string, content io.Reader) (*StoredFile, error) {
	publicID := uuid.NewString()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := writer.WriteField("public_id", publicID); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", os.Getenv("STORAGE_URL")+"/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+os.Getenv("STORAGE_API_KEY"))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("storage upload failed: status %d: %s", resp.StatusCode, string(body))
	}

	var stored StoredFile
	if err := json.NewDecoder(resp.Body).Decode(&stored); err != nil {
		return nil, err
	}
	if stored.PublicID == "" {
		stored.PublicID = publicID
	}

	return &stored, nil
}

func (s *HTTPStorage) Delete(publicID string) error {
	return s.post("/delete", map[string]string{"public_id": publicID}, nil)
}

func (s *HTTPStorage) Rename(publicID, newName string) (*StoredFile, error) {
	var stored StoredFile
	if err := s.post("/rename", map[string]string{"public_id": publicID, "new_name": newName}, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (s *HTTPStorage) post(path string, payload map[string]string, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", os.Getenv("STORAGE_URL")+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+os.Getenv("STORAGE_API_KEY"))

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("storage request %s failed: status %d: %s", path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
