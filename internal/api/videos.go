package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/lecture-chat/cli/internal/model"
	"github.com/lecture-chat/cli/internal/pipeline"
)

type processingResponse struct {
	VideoID  string       `json:"video_id"`
	Status   model.Status `json:"status"`
	Message  string       `json:"message"`
	Progress float64      `json:"progress"`
}

type videoSummary struct {
	VideoID     string       `json:"video_id"`
	Title       string       `json:"title"`
	Filename    string       `json:"filename"`
	Duration    float64      `json:"duration"`
	TotalChunks int          `json:"total_chunks"`
	Status      model.Status `json:"processing_status"`
	Progress    float64      `json:"progress"`
	UploadedAt  string       `json:"upload_timestamp"`
}

type videoListResponse struct {
	Videos []videoSummary `json:"videos"`
	Total  int            `json:"total"`
}

type videoDetailResponse struct {
	Metadata *model.VideoRecord `json:"metadata"`
	Chunks   []model.Chunk      `json:"chunks"`
}

// uploadVideo streams the multipart "file" field to the upload directory,
// registers the video and starts processing it
func (s *Server) uploadVideo(w http.ResponseWriter, r *http.Request) {
	limit := s.Processor.MaxUploadBytes()
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "expected a multipart upload with a file field")
		return
	}

	var (
		media pipeline.Media
		saved bool
	)
	cleanup := func() {
		if saved {
			os.Remove(media.Path)
		}
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			cleanup()
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
			return
		}

		switch part.FormName() {
		case "title":
			b, _ := io.ReadAll(io.LimitReader(part, 1024))
			media.Title = strings.TrimSpace(string(b))
		case "file":
			if saved {
				part.Close()
				continue
			}
			media.Filename = filepath.Base(part.FileName())
			// extension check before anything is written
			if err := s.Processor.ValidateUpload(media.Filename, 1); err != nil {
				s.fail(w, r, err)
				return
			}
			media.ID = uuid.NewString()
			media.Path = filepath.Join(s.opts.UploadDir, media.ID+strings.ToLower(filepath.Ext(media.Filename)))
			saved = true
			media.Size, err = saveUpload(part, media.Path, limit)
			if err != nil {
				cleanup()
				s.fail(w, r, err)
				return
			}
		}
		part.Close()
	}

	if !saved {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	if s.Prober != nil {
		d, err := s.Prober.ProbeDuration(r.Context(), media.Path)
		if err != nil {
			s.logger.Warn("failed to probe duration", "path", media.Path, "error", err)
		} else {
			media.Duration = d
		}
	}

	rec, err := s.Processor.Register(r.Context(), media)
	if err != nil {
		cleanup()
		s.fail(w, r, err)
		return
	}

	rec, err = s.Processor.Start(r.Context(), rec.ID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, processingResponse{
		VideoID:  rec.ID,
		Status:   rec.Status,
		Message:  "Video uploaded successfully. Processing started.",
		Progress: rec.Status.Progress(),
	})
}

// saveUpload copies at most limit bytes to path. Larger and empty files are rejected.
func saveUpload(src io.Reader, path string, limit int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create upload directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	defer f.Close()

	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return n, model.Validationf("file too large: maximum is %d bytes", limit)
		}
		return n, fmt.Errorf("failed to save upload: %w", err)
	}
	if limit > 0 && n > limit {
		return n, model.Validationf("file too large: maximum is %d bytes", limit)
	}
	if n == 0 {
		return 0, model.Validationf("file is empty")
	}
	return n, nil
}

func (s *Server) listVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.Videos.ListVideos(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	resp := videoListResponse{Videos: make([]videoSummary, 0, len(videos)), Total: len(videos)}
	for _, v := range videos {
		total := 0
		if v.TotalChunks != nil {
			total = *v.TotalChunks
		}
		resp.Videos = append(resp.Videos, videoSummary{
			VideoID:     v.ID,
			Title:       v.DisplayTitle(),
			Filename:    v.Filename,
			Duration:    v.Duration,
			TotalChunks: total,
			Status:      v.Status,
			Progress:    v.Status.Progress(),
			UploadedAt:  v.UploadedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	v, err := s.Videos.GetVideo(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	chunks := []model.Chunk{}
	if s.Chunks != nil && v.Status == model.StatusCompleted {
		loaded, err := s.Chunks.LoadChunks(id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		chunks = append(chunks, loaded...)
	}
	writeJSON(w, http.StatusOK, videoDetailResponse{Metadata: v, Chunks: chunks})
}

func (s *Server) videoStatus(w http.ResponseWriter, r *http.Request) {
	v, err := s.Videos.GetVideo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, processingResponse{
		VideoID:  v.ID,
		Status:   v.Status,
		Message:  v.Status.Message(v.Error),
		Progress: v.Status.Progress(),
	})
}

func (s *Server) processVideo(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Processor.Start(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, processingResponse{
		VideoID:  rec.ID,
		Status:   rec.Status,
		Message:  "Processing started.",
		Progress: rec.Status.Progress(),
	})
}

func (s *Server) retryVideo(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Processor.Retry(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, processingResponse{
		VideoID:  rec.ID,
		Status:   rec.Status,
		Message:  "Processing restarted.",
		Progress: rec.Status.Progress(),
	})
}

// deleteVideo removes a video, its chunks and artifacts, and the uploaded file
// when it lives in the upload directory
func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Processor.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if s.opts.UploadDir != "" && rec.SourcePath != "" &&
		filepath.Dir(filepath.Clean(rec.SourcePath)) == filepath.Clean(s.opts.UploadDir) {
		if err := os.Remove(rec.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove upload", "path", rec.SourcePath, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"video_id": rec.ID,
		"message":  "Video deleted successfully",
	})
}
