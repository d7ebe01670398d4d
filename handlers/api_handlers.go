package handlers

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"attendance-server-go/export"
	"attendance-server-go/ledger"
	"attendance-server-go/models"
	"attendance-server-go/roster"
	"attendance-server-go/tracker"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// APIHandler holds the dependencies for API handlers, like the tracker service
type APIHandler struct {
	Tracker *tracker.Service
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(service *tracker.Service) *APIHandler {
	return &APIHandler{
		Tracker: service,
	}
}

// RegisterRoutes mounts every route under /api
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	{
		api.GET("/ping", PingHandler)
		api.GET("/state", h.GetState)

		// Roster routes
		api.POST("/students", h.AddStudents)
		api.DELETE("/students/:id", h.RemoveStudent)
		api.POST("/students/:id/absences", h.MarkAbsence)

		// Ledger routes
		api.POST("/months/:year/:month/students/:id/days/:day/toggle", h.ToggleDay)
		api.DELETE("/months/:year/:month", h.ClearMonth)
		api.GET("/months/:year/:month/summary", h.MonthSummary)
		api.GET("/months/:year/:month/export.csv", h.ExportCSV)
		api.GET("/months/:year/:month/export.xlsx", h.ExportMonthWorkbook)

		// View routes
		api.PUT("/view", h.SetView)
		api.POST("/view/previous", h.PreviousMonth)
		api.POST("/view/next", h.NextMonth)

		// Fee workbook and import
		api.GET("/export/fees.xlsx", h.ExportFeeWorkbook)
		api.POST("/import/students", h.ImportStudents)
	}
}

// GetState handles GET /api/state
func (h *APIHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.Tracker.Snapshot())
}

// --- Roster Handlers ---

type addStudentsRequest struct {
	Names string `json:"names"`
}

// AddStudents handles POST /api/students
func (h *APIHandler) AddStudents(c *gin.Context) {
	var req addStudentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	added, err := h.Tracker.AddStudents(c.Request.Context(), req.Names)
	if err != nil {
		log.Printf("Error in AddStudents handler: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save students"})
		return
	}
	if added == nil {
		added = []models.Student{}
	}
	c.JSON(http.StatusCreated, added)
}

// RemoveStudent handles DELETE /api/students/:id
func (h *APIHandler) RemoveStudent(c *gin.Context) {
	id := c.Param("id")
	removed, err := h.Tracker.RemoveStudent(c.Request.Context(), id)
	if err != nil {
		log.Printf("Error in RemoveStudent handler for ID %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove student"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// MarkAbsence handles POST /api/students/:id/absences
func (h *APIHandler) MarkAbsence(c *gin.Context) {
	id := c.Param("id")
	student, err := h.Tracker.MarkAbsence(c.Request.Context(), id)
	switch {
	case errors.Is(err, roster.ErrAbsenceAlreadyRecorded):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error(), "student": student})
		return
	case errors.Is(err, roster.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	case err != nil:
		log.Printf("Error in MarkAbsence handler for ID %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record absence"})
		return
	}
	c.JSON(http.StatusOK, student)
}

// --- Ledger Handlers ---

// ToggleDay handles POST /api/months/:year/:month/students/:id/days/:day/toggle
func (h *APIHandler) ToggleDay(c *gin.Context) {
	year, month, ok := monthParams(c)
	if !ok {
		return
	}
	day, err := strconv.Atoi(c.Param("day"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Day must be a number"})
		return
	}
	id := c.Param("id")

	days, err := h.Tracker.ToggleDay(c.Request.Context(), id, year, month, day)
	switch {
	case errors.Is(err, tracker.ErrInvalidDay):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, roster.ErrStudentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		return
	case err != nil:
		log.Printf("Error in ToggleDay handler for %s %d-%d-%d: %v", id, year, month, day, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to toggle day"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"month":     ledger.MonthKey(year, month),
		"studentId": id,
		"days":      days,
	})
}

// ClearMonth handles DELETE /api/months/:year/:month
func (h *APIHandler) ClearMonth(c *gin.Context) {
	year, month, ok := monthParams(c)
	if !ok {
		return
	}
	if err := h.Tracker.ClearMonth(c.Request.Context(), year, month); err != nil {
		log.Printf("Error in ClearMonth handler for %d-%d: %v", year, month, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear month"})
		return
	}
	c.Status(http.StatusNoContent)
}

// MonthSummary handles GET /api/months/:year/:month/summary
func (h *APIHandler) MonthSummary(c *gin.Context) {
	year, month, ok := monthParams(c)
	if !ok {
		return
	}
	rows, err := h.Tracker.MonthSummary(year, month)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"month":       ledger.MonthKey(year, month),
		"daysInMonth": ledger.DaysInMonth(year, month),
		"students":    rows,
	})
}

// ExportCSV handles GET /api/months/:year/:month/export.csv
func (h *APIHandler) ExportCSV(c *gin.Context) {
	year, month, ok := monthParams(c)
	if !ok {
		return
	}
	filename, csv, err := h.Tracker.ExportCSV(year, month)
	if err != nil {
		exportError(c, err)
		return
	}
	attachment(c, filename)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csv))
}

// ExportMonthWorkbook handles GET /api/months/:year/:month/export.xlsx
func (h *APIHandler) ExportMonthWorkbook(c *gin.Context) {
	year, month, ok := monthParams(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	filename, err := h.Tracker.ExportMonthWorkbook(&buf, year, month)
	if err != nil {
		exportError(c, err)
		return
	}
	attachment(c, filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportFeeWorkbook handles GET /api/export/fees.xlsx
func (h *APIHandler) ExportFeeWorkbook(c *gin.Context) {
	var buf bytes.Buffer
	filename, err := h.Tracker.ExportFeeWorkbook(&buf)
	if err != nil {
		exportError(c, err)
		return
	}
	attachment(c, filename)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// --- View Handlers ---

// SetView handles PUT /api/view
func (h *APIHandler) SetView(c *gin.Context) {
	var req models.View
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	view, err := h.Tracker.SetView(c.Request.Context(), req.Year, req.Month)
	h.viewResponse(c, view, err)
}

// PreviousMonth handles POST /api/view/previous
func (h *APIHandler) PreviousMonth(c *gin.Context) {
	view, err := h.Tracker.PreviousMonth(c.Request.Context())
	h.viewResponse(c, view, err)
}

// NextMonth handles POST /api/view/next
func (h *APIHandler) NextMonth(c *gin.Context) {
	view, err := h.Tracker.NextMonth(c.Request.Context())
	h.viewResponse(c, view, err)
}

func (h *APIHandler) viewResponse(c *gin.Context, view models.View, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidMonth):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Printf("Error updating view: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save view"})
	default:
		c.JSON(http.StatusOK, view)
	}
}

// --- Import Handler ---

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	// Get file from form data
	file, header, err := c.Request.FormFile("file") // "file" is the name attribute in the form
	if err != nil {
		log.Printf("Error getting form file: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"message": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	log.Printf("Received file upload: %s", header.Filename)

	added, err := h.Tracker.ImportStudents(c.Request.Context(), file)
	if err != nil {
		log.Printf("Error importing students from file %s: %v", header.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to import students: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": len(added),
		"students":      added,
	})
}

// --- Ping Handler ---
func PingHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}

// --- Helpers ---

func monthParams(c *gin.Context) (int, int, bool) {
	year, errY := strconv.Atoi(c.Param("year"))
	month, errM := strconv.Atoi(c.Param("month"))
	if errY != nil || errM != nil || !ledger.ValidMonth(year, month) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Year and month must form a valid month"})
		return 0, 0, false
	}
	return year, month, true
}

func exportError(c *gin.Context, err error) {
	if errors.Is(err, export.ErrEmptyRoster) {
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
		return
	}
	log.Printf("Error exporting: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export"})
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(filename))
}
