package generation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"certmint/certificate-portal/certificate-portal-backend/internal/certificate"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	generations := rg.Group("/generations")
	{
		generations.POST("", h.Create)
		generations.GET("", h.List)
		generations.GET("/:id", h.Get)
		generations.GET("/:id/download", h.Download)
	}
}

func (h *Handler) Create(c *gin.Context) {
	templateID, err := uuid.Parse(c.PostForm("template_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id is required"})
		return
	}

	file, err := c.FormFile("dataset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dataset file is required"})
		return
	}

	requestedBy, _ := uuid.Parse(c.PostForm("requested_by"))

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	job, err := h.service.CreateGeneration(c.Request.Context(), CreateRequest{
		TemplateID:  templateID,
		RequestedBy: requestedBy,
		Tier:        certificate.PackageTier(c.PostForm("tier")),
		DatasetName: file.Filename,
		Dataset:     f,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, job)
}

func (h *Handler) List(c *gin.Context) {
	var requestedBy *uuid.UUID
	if raw := c.Query("requested_by"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid requested_by"})
			return
		}
		requestedBy = &id
	}

	jobs, err := h.service.ListJobs(c.Request.Context(), requestedBy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, jobs)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	job, err := h.service.GetJob(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation job not found"})
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	url, err := h.service.ArchiveURL(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
