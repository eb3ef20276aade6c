package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	service "github.com/okian/postflow/internal/app"
	"github.com/okian/postflow/internal/domain/model"
	"github.com/okian/postflow/internal/domain/types"
)

const (
	// multipartMemory is held in memory before parts spill to temp files.
	multipartMemory = 8 << 20
	// maxFormAssets bounds the asset index scan; the service enforces its own limit.
	maxFormAssets = 64
)

// handleCreatePost handles POST /posts (multipart/form-data).
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_post"

	id := IdentityFrom(r.Context())
	if id == nil {
		writeServiceError(w, fmt.Errorf("%s: %w", op, service.ErrNotAuthenticated))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", fmt.Errorf("%s: body exceeds %d bytes", op, tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, closers, err := parsePublishForm(r.MultipartForm)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}

	res, err := s.deps.Publish(r.Context(), id, req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// parsePublishForm reads the text fields and every asset{i}/text{i} slot up
// to the first gap.
func parsePublishForm(form *multipart.Form) (service.PublishRequest, []multipart.File, error) {
	value := func(key string) string {
		if vs := form.Value[key]; len(vs) > 0 {
			return strings.TrimSpace(vs[0])
		}
		return ""
	}

	req := service.PublishRequest{
		Title:        value("title"),
		Tags:         splitTags(value("tags")),
		Location:     value("location"),
		CollectionID: value("collectionId"),
		Status:       value("status"),
	}

	var files []multipart.File
	for i := 0; i < maxFormAssets; i++ {
		n := strconv.Itoa(i)
		headers := form.File["asset"+n]
		text := value("text" + n)
		if len(headers) == 0 && text == "" {
			break
		}

		a := service.AssetInput{
			Text:     text,
			Caption:  value("caption" + n),
			Sellable: parseBool(value("sellable" + n)),
			Tier:     value("tier" + n),
			Stickers: parseBool(value("stickers" + n)),
		}
		if len(headers) > 0 {
			f, err := headers[0].Open()
			if err != nil {
				return req, files, fmt.Errorf("asset%d: %w", i, err)
			}
			files = append(files, f)
			a.Name = headers[0].Filename
			a.ContentType = headers[0].Header.Get("Content-Type")
			if a.ContentType == "application/octet-stream" {
				a.ContentType = ""
			}
			a.Body = f
		}
		if raw := value("exif" + n); raw != "" {
			var manual model.ExifMetadata
			if err := json.Unmarshal([]byte(raw), &manual); err != nil {
				return req, files, fmt.Errorf("exif%d: %w", i, err)
			}
			a.ManualExif = &manual
		}
		req.Assets = append(req.Assets, a)
	}
	return req, files, nil
}

func splitTags(s string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	return tags
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

// handleGetPost handles GET /posts/{id}.
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	post, err := s.deps.GetPost(r.Context(), IdentityFrom(r.Context()), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleSetAvailability handles PATCH /commerce/{id}.
func (s *Server) handleSetAvailability(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_availability"

	var body types.AvailabilityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %v", op, ErrBadRequest, err))
		return
	}
	if body.Available == nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: missing available", op, ErrBadRequest))
		return
	}

	item, err := s.deps.SetCommerceAvailability(r.Context(), IdentityFrom(r.Context()), r.PathValue("id"), *body.Available)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
