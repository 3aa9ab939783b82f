package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusuite/enrollment-gateway/internal/dto"
	"github.com/edusuite/enrollment-gateway/internal/models"
	"github.com/edusuite/enrollment-gateway/internal/service"
	appErrors "github.com/edusuite/enrollment-gateway/pkg/errors"
	"github.com/edusuite/enrollment-gateway/pkg/response"
)

// DraftHandler exposes the enrollment wizard endpoints.
type DraftHandler struct {
	drafts   *service.DraftService
	commits  *service.CommitService
	receipts *service.ReceiptService
}

// NewDraftHandler creates a new draft handler.
func NewDraftHandler(drafts *service.DraftService, commits *service.CommitService, receipts *service.ReceiptService) *DraftHandler {
	return &DraftHandler{drafts: drafts, commits: commits, receipts: receipts}
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// Open godoc
// @Summary Open an enrollment draft
// @Description Start a wizard session for a student
// @Tags Drafts
// @Accept json
// @Produce json
// @Param payload body dto.OpenDraftRequest true "Open payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollment-drafts [post]
func (h *DraftHandler) Open(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.OpenDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid open draft payload"))
		return
	}

	draft, err := h.drafts.Open(c.Request.Context(), req, claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.DraftResponse{Draft: draft})
}

// Get godoc
// @Summary Get a draft
// @Description Return the full wizard state
// @Tags Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollment-drafts/{id} [get]
func (h *DraftHandler) Get(c *gin.Context) {
	draft, err := h.drafts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DraftResponse{Draft: draft}, nil)
}

// Cancel godoc
// @Summary Cancel a draft
// @Description Abandon the wizard session and release staged files
// @Tags Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollment-drafts/{id} [delete]
func (h *DraftHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.drafts.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// PatchStudent godoc
// @Summary Save student step edits
// @Description Store the step-one form, keeping only changed fields
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body dto.StudentPatchRequest true "Student patch"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-drafts/{id}/student [put]
func (h *DraftHandler) PatchStudent(c *gin.Context) {
	var req dto.StudentPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student patch payload"))
		return
	}
	draft, err := h.drafts.PatchStudent(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DraftResponse{Draft: draft}, nil)
}

// SetTutors godoc
// @Summary Save the tutor step
// @Description Replace the draft's tutor lists
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body dto.TutorSetRequest true "Tutor lists"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-drafts/{id}/tutors [put]
func (h *DraftHandler) SetTutors(c *gin.Context) {
	var req dto.TutorSetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid tutor payload"))
		return
	}
	draft, err := h.drafts.SetTutors(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DraftResponse{Draft: draft}, nil)
}

// SetRegistration godoc
// @Summary Save the registration step
// @Description Select the target class and academic year
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body dto.RegistrationRequest true "Registration selection"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-drafts/{id}/registration [put]
func (h *DraftHandler) SetRegistration(c *gin.Context) {
	var req dto.RegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}
	draft, err := h.drafts.SetRegistration(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DraftResponse{Draft: draft}, nil)
}

// SetPaymentPlan godoc
// @Summary Save the payment step
// @Description Replace the draft's payment plan
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body dto.PaymentPlanRequest true "Payment plan"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-drafts/{id}/payment-plan [put]
func (h *DraftHandler) SetPaymentPlan(c *gin.Context) {
	var req dto.PaymentPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment plan payload"))
		return
	}
	draft, err := h.drafts.SetPaymentPlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DraftResponse{Draft: draft}, nil)
}

// AttachDocument godoc
// @Summary Attach a staged document
// @Description Link a staged file to the draft as a pending document
// @Tags Drafts
// @Accept json
// @Produce json
// @Param id path string true "Draft ID"
// @Param payload body dto.AttachDocumentRequest true "Document"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollment-drafts/{id}/documents [post]
func (h *DraftHandler) AttachDocument(c *gin.Context) {
	var req dto.AttachDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}
	draft, err := h.drafts.AttachDocument(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DraftResponse{Draft: draft}, nil)
}

// DetachDocument godoc
// @Summary Detach a pending document
// @Description Remove a pending document and release its staged file
// @Tags Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Param fileId path string true "Staged file ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /enrollment-drafts/{id}/documents/{fileId} [delete]
func (h *DraftHandler) DetachDocument(c *gin.Context) {
	draft, err := h.drafts.DetachDocument(c.Request.Context(), c.Param("id"), c.Param("fileId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.DraftResponse{Draft: draft}, nil)
}

// Commit godoc
// @Summary Commit the draft
// @Description Run the enrollment sequence against the core API
// @Tags Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /enrollment-drafts/{id}/commit [post]
func (h *DraftHandler) Commit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	res, err := h.commits.Commit(c.Request.Context(), c.Param("id"), claims.UserID, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Receipt godoc
// @Summary Download the enrollment receipt
// @Description Render a PDF receipt for a committed draft
// @Tags Drafts
// @Produce octet-stream
// @Param id path string true "Draft ID"
// @Param format query string false "Export format (pdf or csv)"
// @Success 200 {file} binary
// @Failure 412 {object} response.Envelope
// @Router /enrollment-drafts/{id}/receipt [get]
func (h *DraftHandler) Receipt(c *gin.Context) {
	if c.Query("format") == "csv" {
		payload, filename, err := h.receipts.RenderCSV(c.Request.Context(), c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/csv", payload)
		return
	}
	payload, filename, err := h.receipts.Render(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}

// ReceiptLink godoc
// @Summary Issue a signed receipt link
// @Description Create a short-lived token for downloading the receipt without credentials
// @Tags Drafts
// @Produce json
// @Param id path string true "Draft ID"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /enrollment-drafts/{id}/receipt-link [post]
func (h *DraftHandler) ReceiptLink(c *gin.Context) {
	link, err := h.receipts.Link(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// DownloadReceipt godoc
// @Summary Download a receipt via signed token
// @Description Render the receipt referenced by a signed download token
// @Tags Drafts
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /receipts/download [get]
func (h *DraftHandler) DownloadReceipt(c *gin.Context) {
	payload, filename, err := h.receipts.RenderByToken(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", payload)
}
