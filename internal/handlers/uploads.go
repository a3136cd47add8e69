package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"skincheck-back/internal/analysis"
	"skincheck-back/internal/apperr"
	"skincheck-back/internal/insights"
	"skincheck-back/internal/models"
	"skincheck-back/internal/uploads"

	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for form boundaries and headers around the image part.
const multipartOverhead = 1 << 20

// UploadResponse is an upload record plus the fields derived for display.
type UploadResponse struct {
	*models.ImageUpload
	ImageURL             string                  `json:"image_url"`
	ConfidencePercentage string                  `json:"confidence_percentage"`
	DoctorRecommendation analysis.Recommendation `json:"doctor_recommendation"`
}

type PageResponse struct {
	Count    int64            `json:"count"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Results  []UploadResponse `json:"results"`
}

func toResponse(c *gin.Context, svc *uploads.Service, u *models.ImageUpload) UploadResponse {
	return UploadResponse{
		ImageUpload:          u,
		ImageURL:             svc.ImageURL(c.Request.Context(), u),
		ConfidencePercentage: fmt.Sprintf("%.1f%%", u.Confidence),
		DoctorRecommendation: analysis.ResultRecommendation(u.Result, u.Confidence),
	}
}

func UploadImage(svc *uploads.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, svc.MaxBytes()+multipartOverhead)

		fh, err := c.FormFile("image")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, logger, svc.TooLarge())
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
			return
		}

		file, err := fh.Open()
		if err != nil {
			respondError(c, logger, fmt.Errorf("open multipart file: %w", err))
			return
		}
		defer file.Close()

		upload, err := svc.Ingest(c.Request.Context(), currentUser(c), uploads.File{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Body:        file,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusCreated, toResponse(c, svc, upload))
	}
}

func parseListQuery(c *gin.Context) (uploads.ListQuery, error) {
	q := uploads.ListQuery{
		Search:       c.Query("search"),
		FilterType:   c.Query("filter_type"),
		Result:       c.Query("result"),
		UrgencyLevel: c.Query("urgency_level"),
		CancerType:   c.Query("cancer_type"),
		RiskLevel:    c.Query("risk_level"),
		Ordering:     c.Query("ordering"),
	}
	if v := c.Query("should_consult_doctor"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, apperr.Validation("should_consult_doctor must be true or false")
		}
		q.ShouldConsultDoctor = &b
	}
	for name, dst := range map[string]*int{"page": &q.Page, "page_size": &q.PageSize} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, apperr.Validation("%s must be a positive integer", name)
		}
		*dst = n
	}
	return q, nil
}

func ListUploads(svc *uploads.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		q, err := parseListQuery(c)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		page, err := svc.List(c.Request.Context(), currentUser(c), q)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		resp := PageResponse{
			Count:    page.Count,
			Page:     page.Page,
			PageSize: page.PageSize,
			Results:  make([]UploadResponse, 0, len(page.Results)),
		}
		for i := range page.Results {
			resp.Results = append(resp.Results, toResponse(c, svc, &page.Results[i]))
		}
		c.JSON(http.StatusOK, resp)
	}
}

func GetUpload(svc *uploads.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, err := svc.Get(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toResponse(c, svc, upload))
	}
}

func DeleteUpload(svc *uploads.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func ClearHistory(svc *uploads.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := svc.ClearHistory(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":       fmt.Sprintf("Successfully deleted %d uploads.", deleted),
			"deleted_count": deleted,
		})
	}
}

func UploadStatistics(svc *insights.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.Statistics(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}
