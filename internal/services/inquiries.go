package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"grantdesk/internal/chat"
	"grantdesk/internal/domain"
	apperrors "grantdesk/pkg/errors"
)

// InquiryHandlers exposes the chat service over HTTP
type InquiryHandlers struct {
	chat *chat.Service
	auth *AuthService
	mux  muxer
}

// NewInquiryHandlers creates the inquiry endpoints
func NewInquiryHandlers(svc *chat.Service, auth *AuthService) *InquiryHandlers {
	return &InquiryHandlers{chat: svc, auth: auth}
}

// Mount registers the inquiry and chat endpoints
func (h *InquiryHandlers) Mount(mux muxer) {
	h.mux = mux
	mux.Handle(http.MethodPost, "/api/v1/support-requests", h.auth.Optional(h.submitSupportRequest))
	mux.Handle(http.MethodPost, "/api/v1/chat/sessions", h.auth.Require(h.startChatSession))
	mux.Handle(http.MethodGet, "/api/v1/inquiries/mine", h.auth.Require(h.listMine))
	mux.Handle(http.MethodGet, "/api/v1/inquiries", h.auth.Require(h.listAll, ScopeStaff))
	mux.Handle(http.MethodGet, "/api/v1/inquiries/{id}", h.auth.Require(h.getInquiry))
	mux.Handle(http.MethodGet, "/api/v1/inquiries/{id}/messages", h.auth.Require(h.listMessages))
	mux.Handle(http.MethodPost, "/api/v1/inquiries/{id}/messages", h.auth.Require(h.sendMessage))
}

type supportRequestBody struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         *string `json:"phone"`
	SpecificNeeds string  `json:"specific_needs"`
}

type createdResult struct {
	ID      string `json:"id"`
	Message string `json:"message,omitempty"`
}

func (h *InquiryHandlers) submitSupportRequest(w http.ResponseWriter, r *http.Request) {
	var body supportRequestBody
	if err := decodeBody(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	in := chat.SupportRequestInput{
		Name:          body.Name,
		Email:         body.Email,
		SpecificNeeds: body.SpecificNeeds,
	}
	if body.Phone != nil {
		in.Phone = *body.Phone
	}
	if user, ok := UserFromContext(r.Context()); ok {
		in.UserID = user.UID
	}

	id, err := h.chat.SubmitSupportRequest(r.Context(), in)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, createdResult{
		ID:      id,
		Message: "Thank you! Our team will get back to you soon.",
	})
}

func (h *InquiryHandlers) startChatSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name         string `json:"name"`
		Email        string `json:"email"`
		FirstMessage string `json:"first_message"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	user, _ := UserFromContext(r.Context())
	name := body.Name
	if strings.TrimSpace(name) == "" {
		name = user.DisplayName()
	}
	// The inquiry is filed under the account email; replies are mailed there.
	email := user.Email
	if body.Email != "" && domain.NormalizeEmail(body.Email) != domain.NormalizeEmail(email) {
		writeError(r.Context(), w, apperrors.Validation("email must match the signed-in account"))
		return
	}

	id, err := h.chat.StartChatSession(r.Context(), chat.StartChatInput{
		UserID:       user.UID,
		Name:         name,
		Email:        email,
		FirstMessage: body.FirstMessage,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, map[string]string{"inquiry_id": id})
}

func (h *InquiryHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	inquiries, err := h.chat.FetchUserInquiries(r.Context(), chat.InquiryLookup{
		UserID: user.UID,
		Email:  user.Email,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, inquiries)
}

func (h *InquiryHandlers) listAll(w http.ResponseWriter, r *http.Request) {
	inquiries, err := h.chat.FetchPremiumInquiries(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, inquiries)
}

func (h *InquiryHandlers) getInquiry(w http.ResponseWriter, r *http.Request) {
	inquiry, err := h.authorizedInquiry(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, inquiry)
}

func (h *InquiryHandlers) listMessages(w http.ResponseWriter, r *http.Request) {
	inquiry, err := h.authorizedInquiry(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	msgs, err := h.chat.ListMessages(r.Context(), inquiry.ID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, msgs)
}

func (h *InquiryHandlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	text := strings.TrimSpace(body.Text)
	if text == "" {
		writeError(r.Context(), w, MakeBadRequest(errors.New("message text is required")))
		return
	}

	inquiry, err := h.authorizedInquiry(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	user, _ := UserFromContext(r.Context())
	sender := domain.SenderUser
	if user.CanModerate() {
		sender = domain.SenderAdmin
	}
	senderID := user.UID

	id, err := h.chat.SendInquiryMessage(r.Context(), inquiry.ID, text, sender, &senderID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(r.Context(), w, http.StatusCreated, createdResult{ID: id})
}

// authorizedInquiry loads the inquiry named in the path and checks the caller
// owns it or answers inquiries for the team
func (h *InquiryHandlers) authorizedInquiry(r *http.Request) (*domain.Inquiry, error) {
	return loadAuthorizedInquiry(r.Context(), h.chat, h.mux.Vars(r)["id"])
}

func loadAuthorizedInquiry(ctx context.Context, svc *chat.Service, id string) (*domain.Inquiry, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return nil, MakeUnauthorized(errors.New("authentication required"))
	}
	inquiry, err := svc.GetInquiry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.CanModerate() && !canAccess(user, inquiry) {
		log.Printf("[API] User %s denied access to inquiry %s", user.UID, id)
		return nil, MakeForbidden(errors.New("not allowed to access this inquiry"))
	}
	return inquiry, nil
}

// canAccess matches by user id, or by email for legacy inquiries submitted
// before the founder had an account
func canAccess(user *domain.User, inquiry *domain.Inquiry) bool {
	if inquiry.OwnedBy(user.UID) {
		return true
	}
	return inquiry.UserID == nil && inquiry.Email == domain.NormalizeEmail(user.Email)
}
