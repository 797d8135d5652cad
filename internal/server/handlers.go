package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anika/warmpath/internal/domain"
	"github.com/anika/warmpath/internal/invite"
	"github.com/anika/warmpath/internal/service"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger  *slog.Logger
	engine  *service.GraphService
	invites *invite.Service
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, engine *service.GraphService, invites *invite.Service) *APIHandlers {
	return &APIHandlers{
		logger:  logger,
		engine:  engine,
		invites: invites,
	}
}

func (h *APIHandlers) handlePeople(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload personRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.PersonID == "" {
		writeError(w, http.StatusBadRequest, "personId is required")
		return
	}

	person, err := h.engine.UpsertPerson(r.Context(), payload.toServiceInput())
	if err != nil {
		h.logger.Error("failed to upsert person", "error", err, "personId", payload.PersonID)
		writeError(w, http.StatusInternalServerError, "failed to persist person")
		return
	}

	respondJSON(w, http.StatusCreated, statusResponse{
		Status: "ok",
		ID:     person.ID,
	})
}

func (h *APIHandlers) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	stats, err := h.engine.RebuildGraph(r.Context())
	if err != nil {
		h.logger.Error("graph rebuild failed", "error", err)
		writeError(w, http.StatusInternalServerError, "graph rebuild failed")
		return
	}

	respondJSON(w, http.StatusOK, toStatsResponse(stats))
}

func (h *APIHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	respondJSON(w, http.StatusOK, toStatsResponse(h.engine.Stats()))
}

func (h *APIHandlers) handleConnections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	query := r.URL.Query()
	source := query.Get("source")
	target := query.Get("target")
	if source == "" || target == "" {
		writeError(w, http.StatusBadRequest, "source and target are required")
		return
	}

	maxHops := 0
	if v := query.Get("maxHops"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid maxHops")
			return
		}
		maxHops = parsed
	}

	result, err := h.engine.FindConnections(r.Context(), source, target, maxHops)
	if err != nil {
		h.logger.Error("path discovery failed", "error", err, "source", source, "target", target)
		writeError(w, http.StatusInternalServerError, "path discovery failed")
		return
	}

	response := connectionsResponse{
		SourceID: result.SourceID,
		TargetID: result.TargetID,
		MaxHops:  result.MaxHops,
		TopScore: result.TopScore,
		Message:  result.Message,
		Paths:    make([]pathResponse, 0, len(result.Paths)),
	}
	for _, path := range result.Paths {
		response.Paths = append(response.Paths, toPathResponse(path))
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload resolveRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "requesterId is required")
		return
	}
	if payload.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	result, err := h.engine.ResolveTarget(r.Context(), service.ResolveRequest{
		RequesterID: payload.RequesterID,
		Name:        payload.Name,
		Company:     payload.Company,
		Title:       payload.Title,
	})
	if err != nil {
		h.logger.Error("target resolution failed", "error", err, "requesterId", payload.RequesterID)
		writeError(w, http.StatusInternalServerError, "target resolution failed")
		return
	}

	response := resolveResponse{
		Found:    result.Found,
		Strategy: result.Strategy,
		Matches:  make([]matchResponse, 0, len(result.Matches)),
	}
	for _, m := range result.Matches {
		response.Matches = append(response.Matches, matchResponse{
			PersonID:          m.Person.ID,
			FullName:          m.Person.FullName,
			Company:           m.Person.Company,
			Title:             m.Person.Title,
			Verified:          m.Person.Verified,
			Confidence:        m.Confidence,
			MatchedFactors:    m.MatchedFactors,
			SuggestedApproach: m.SuggestedApproach,
		})
	}

	respondJSON(w, http.StatusOK, response)
}

func (h *APIHandlers) handleInvitations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload invitationRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.GhostPersonID == "" || payload.RequesterID == "" {
		writeError(w, http.StatusBadRequest, "ghostPersonId and requesterId are required")
		return
	}

	result, err := h.invites.Create(r.Context(), payload.GhostPersonID, payload.RequesterID, payload.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "ghost person not found")
		case errors.Is(err, invite.ErrInvalidState):
			writeError(w, http.StatusConflict, "person is already verified")
		default:
			h.logger.Error("failed to create invitation", "error", err, "ghostId", payload.GhostPersonID)
			writeError(w, http.StatusInternalServerError, "failed to create invitation")
		}
		return
	}

	respondJSON(w, http.StatusCreated, invitationResponse{
		InviteID:  result.InviteID,
		Token:     result.Token,
		ExpiresAt: formatTime(result.ExpiresAt),
		EmailSent: result.EmailSent,
	})
}

func (h *APIHandlers) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload activateRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	result, err := h.invites.Activate(r.Context(), payload.Token, service.ActivationData{
		FullName: payload.FullName,
		Company:  payload.Company,
		Title:    payload.Title,
		Location: payload.Location,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "invitation not found")
		case errors.Is(err, invite.ErrAlreadyUsed):
			writeError(w, http.StatusConflict, "invitation already used")
		case errors.Is(err, invite.ErrExpired):
			writeError(w, http.StatusGone, "invitation expired")
		default:
			h.logger.Error("activation failed", "error", err)
			writeError(w, http.StatusInternalServerError, "activation failed")
		}
		return
	}

	respondJSON(w, http.StatusOK, activateResponse{
		Success:  result.Success,
		PersonID: result.PersonID,
		Message:  result.Message,
	})
}

type personRequest struct {
	PersonID       string              `json:"personId"`
	FullName       string              `json:"fullName"`
	Company        string              `json:"company"`
	Title          string              `json:"title"`
	Location       string              `json:"location"`
	Employments    []employmentRequest `json:"employments"`
	Educations     []educationRequest  `json:"educations"`
	Affiliations   []string            `json:"affiliations"`
	HometownCity   string              `json:"hometownCity"`
	HometownRegion string              `json:"hometownRegion"`
	SocialHandles  map[string]string   `json:"socialHandles"`
	SocialLinks    []string            `json:"socialLinks"`
	Interests      []string            `json:"interests"`
	Verified       bool                `json:"verified"`
}

type employmentRequest struct {
	Company   string `json:"company"`
	Title     string `json:"title"`
	StartYear int    `json:"startYear"`
	EndYear   int    `json:"endYear"`
}

type educationRequest struct {
	School    string `json:"school"`
	Degree    string `json:"degree"`
	StartYear int    `json:"startYear"`
	EndYear   int    `json:"endYear"`
}

type resolveRequest struct {
	RequesterID string `json:"requesterId"`
	Name        string `json:"name"`
	Company     string `json:"company"`
	Title       string `json:"title"`
}

type invitationRequest struct {
	GhostPersonID string `json:"ghostPersonId"`
	RequesterID   string `json:"requesterId"`
	TargetID      string `json:"targetId"`
}

type activateRequest struct {
	Token    string `json:"token"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Title    string `json:"title"`
	Location string `json:"location"`
}

type statusResponse struct {
	Status string `json:"status"`
	ID     string `json:"id,omitempty"`
}

type statsResponse struct {
	Nodes                 int            `json:"nodes"`
	Edges                 int            `json:"edges"`
	RelationshipBreakdown map[string]int `json:"relationshipBreakdown"`
	CompanyBreakdown      map[string]int `json:"companyBreakdown"`
	LastRebuild           string         `json:"lastRebuild,omitempty"`
}

type connectionsResponse struct {
	SourceID string         `json:"sourceId"`
	TargetID string         `json:"targetId"`
	MaxHops  int            `json:"maxHops"`
	TopScore float64        `json:"topScore"`
	Message  string         `json:"message,omitempty"`
	Paths    []pathResponse `json:"paths"`
}

type pathResponse struct {
	PersonIDs     []string      `json:"personIds"`
	Hops          []hopResponse `json:"hops"`
	Score         float64       `json:"score"`
	EdgeTypes     []string      `json:"edgeTypes"`
	ContainsGhost bool          `json:"containsGhost"`
}

type hopResponse struct {
	FromID   string  `json:"fromId"`
	ToID     string  `json:"toId"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
}

type resolveResponse struct {
	Found    bool            `json:"found"`
	Matches  []matchResponse `json:"matches"`
	Strategy string          `json:"strategy"`
}

type matchResponse struct {
	PersonID          string   `json:"personId"`
	FullName          string   `json:"fullName"`
	Company           string   `json:"company,omitempty"`
	Title             string   `json:"title,omitempty"`
	Verified          bool     `json:"verified"`
	Confidence        float64  `json:"confidence"`
	MatchedFactors    []string `json:"matchedFactors"`
	SuggestedApproach string   `json:"suggestedApproach"`
}

type invitationResponse struct {
	InviteID  string `json:"inviteId"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expiresAt"`
	EmailSent bool   `json:"emailSent"`
}

type activateResponse struct {
	Success  bool   `json:"success"`
	PersonID string `json:"personId,omitempty"`
	Message  string `json:"message,omitempty"`
}

func (req personRequest) toServiceInput() service.PersonInput {
	input := service.PersonInput{
		ID:             req.PersonID,
		FullName:       req.FullName,
		Company:        req.Company,
		Title:          req.Title,
		Location:       req.Location,
		Affiliations:   req.Affiliations,
		HometownCity:   req.HometownCity,
		HometownRegion: req.HometownRegion,
		SocialHandles:  req.SocialHandles,
		SocialLinks:    req.SocialLinks,
		Interests:      req.Interests,
		Verified:       req.Verified,
	}
	for _, emp := range req.Employments {
		input.Employments = append(input.Employments, service.EmploymentInput{
			Company:   emp.Company,
			Title:     emp.Title,
			StartYear: emp.StartYear,
			EndYear:   emp.EndYear,
		})
	}
	for _, edu := range req.Educations {
		input.Educations = append(input.Educations, service.EducationInput{
			School:    edu.School,
			Degree:    edu.Degree,
			StartYear: edu.StartYear,
			EndYear:   edu.EndYear,
		})
	}
	return input
}

func toStatsResponse(stats domain.RebuildStats) statsResponse {
	resp := statsResponse{
		Nodes:                 stats.Nodes,
		Edges:                 stats.Edges,
		RelationshipBreakdown: make(map[string]int, len(stats.RelationshipBreakdown)),
		CompanyBreakdown:      stats.CompanyBreakdown,
		LastRebuild:           formatTime(stats.LastRebuild),
	}
	for typ, count := range stats.RelationshipBreakdown {
		resp.RelationshipBreakdown[string(typ)] = count
	}
	return resp
}

func toPathResponse(path domain.Path) pathResponse {
	resp := pathResponse{
		PersonIDs:     path.PersonIDs,
		Score:         path.Score,
		ContainsGhost: path.ContainsGhost,
		Hops:          make([]hopResponse, 0, len(path.Hops)),
		EdgeTypes:     make([]string, 0, len(path.EdgeTypes)),
	}
	for _, hop := range path.Hops {
		resp.Hops = append(resp.Hops, hopResponse{
			FromID:   hop.FromID,
			ToID:     hop.ToID,
			Type:     string(hop.Type),
			Strength: hop.Strength,
		})
	}
	for _, typ := range path.EdgeTypes {
		resp.EdgeTypes = append(resp.EdgeTypes, string(typ))
	}
	return resp
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
