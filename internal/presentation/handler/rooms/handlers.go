package rooms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/syncstream/syncstream/internal/application"
	"github.com/syncstream/syncstream/internal/domain"
	"github.com/syncstream/syncstream/internal/infrastructure/events"
	"github.com/syncstream/syncstream/internal/infrastructure/invite"
	"github.com/syncstream/syncstream/internal/infrastructure/json"
	"github.com/syncstream/syncstream/internal/infrastructure/logging"
	"github.com/syncstream/syncstream/internal/infrastructure/membership"
	"github.com/syncstream/syncstream/internal/infrastructure/registry"
	"github.com/syncstream/syncstream/internal/infrastructure/video"
	"github.com/syncstream/syncstream/internal/infrastructure/ws"
	"github.com/syncstream/syncstream/internal/presentation/utils"
	"go.uber.org/zap"
)

type Handler struct {
	publicURL string

	registry  *registry.Registry
	members   *membership.Manager
	session   *application.Session
	chat      *application.ChatRelay
	fanout    *application.Fanout
	gateway   *ws.Gateway
	publisher events.RoomEvents
	snapshots domain.RoomSnapshotRepository

	logger *zap.SugaredLogger
}

func NewHandler(
	publicURL string,
	reg *registry.Registry,
	members *membership.Manager,
	session *application.Session,
	chat *application.ChatRelay,
	fanout *application.Fanout,
	gateway *ws.Gateway,
	publisher events.RoomEvents,
	snapshots domain.RoomSnapshotRepository,
	logger *zap.SugaredLogger,
) *Handler {
	return &Handler{
		publicURL: publicURL,
		registry:  reg,
		members:   members,
		session:   session,
		chat:      chat,
		fanout:    fanout,
		gateway:   gateway,
		publisher: publisher,
		snapshots: snapshots,
		logger:    logger,
	}
}

// CreateRoomHandler registers a new room around one video. The caller's
// guest identity is minted here if missing, so the follow-up join already
// carries the cookie.
func (h *Handler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.Read(r, &req); err != nil {
		json.WriteValidationError(w, err)
		return
	}

	videoRef, err := video.Resolve(req.VideoURL)
	if err != nil {
		json.WriteError(w, http.StatusBadRequest, err, "Not a recognizable YouTube URL or video id")
		return
	}

	memberID := utils.EnsureMemberID(w, r)

	room, err := h.registry.Create(videoRef)
	if err != nil {
		if errors.Is(err, domain.ErrRegistryExhausted) {
			json.WriteError(w, http.StatusServiceUnavailable, err, "Could not allocate a room id, try again")
			return
		}
		h.logger.Errorw("failed to create room", "error", err)
		json.WriteInternalError(w, err)
		return
	}

	if err := h.publisher.RoomCreated(r.Context(), room.ID, room.VideoRef); err != nil {
		h.logger.Warnw("failed to publish room created event",
			"category", logging.RabbitMQ,
			string(logging.RoomId), room.ID,
			"error", err,
		)
	}

	json.Write(w, http.StatusCreated, createRoomResponse{
		RoomID:    room.ID,
		VideoRef:  room.VideoRef,
		EmbedURL:  video.EmbedURL(room.VideoRef),
		CreatedAt: room.CreatedAt,
		MemberID:  memberID,
	})
}

// GetRoomHandler returns the room view: video, playback extrapolated to
// now, and the roster. Intended for polling and pre-join page loads; live
// clients use the websocket.
func (h *Handler) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	room, err := h.registry.Get(roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteInternalError(w, err)
			return
		}
		room = h.restoreFromSnapshot(r.Context(), roomID)
		if room == nil {
			json.WriteError(w, http.StatusNotFound, domain.ErrRoomNotFound, "Room not found")
			return
		}
	}

	utils.EnsureMemberID(w, r)

	members := h.members.ListMembers(roomID)
	mapped := make([]memberResponse, len(members))
	for i, member := range members {
		mapped[i] = memberResponse{
			ID:          member.ID,
			DisplayName: member.DisplayName,
			AvatarRef:   member.AvatarRef,
			Presence:    member.Presence,
		}
	}

	json.Write(w, http.StatusOK, roomResponse{
		ID:        room.ID,
		VideoRef:  room.VideoRef,
		EmbedURL:  video.EmbedURL(room.VideoRef),
		CreatedAt: room.CreatedAt,
		Playback:  room.Snapshot(time.Now()),
		Members:   mapped,
	})
}

// JoinRoomHandler upgrades to a websocket and admits the caller into the
// room. Validation that can fail with a proper HTTP status happens before
// the upgrade; everything after is reported over the socket.
func (h *Handler) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	displayName := r.URL.Query().Get("displayName")
	if displayName == "" {
		json.WriteValidationError(w, errors.New("displayName query parameter is required"))
		return
	}

	if !h.registry.Exists(roomID) {
		json.WriteError(w, http.StatusNotFound, domain.ErrRoomNotFound, "Room not found")
		return
	}

	// Headers set on w are lost once the connection is hijacked, so a fresh
	// member id cookie rides on the upgrade response itself.
	memberID := utils.GetMemberIDFromRequest(r)
	var responseHeader http.Header
	if memberID == "" {
		memberID = uuid.New().String()
		responseHeader = utils.MemberIDSetCookieHeader(memberID)
	}

	conn, err := h.gateway.Upgrade(w, r, responseHeader)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed",
			string(logging.RoomId), roomID,
			"error", err,
		)
		return
	}

	client := h.gateway.Open(conn, memberID, roomID)

	identity := domain.Identity{
		MemberID:    memberID,
		DisplayName: displayName,
		AvatarRef:   r.URL.Query().Get("avatar"),
	}

	if _, err := h.session.Join(roomID, identity, client, r.URL.Query().Get("since")); err != nil {
		// Validation errors carry their own message; keep it.
		reason := err.Error()
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			reason = "Room not found"
		case errors.Is(err, domain.ErrUnauthenticated):
			_ = client.Enqueue(ws.NewAuthError(roomID, "Failed to establish identity"))
			client.Close()
			return
		}
		_ = client.Enqueue(ws.NewJoinFailed(roomID, reason))
		client.Close()
		return
	}

	go client.ReadPump(h.session)
}

// LeaveRoomHandler is the HTTP fallback for an explicit exit, for clients
// whose socket is already gone (sendBeacon on tab close).
func (h *Handler) LeaveRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	memberID := utils.GetMemberIDFromRequest(r)
	if memberID == "" {
		json.WriteError(w, http.StatusUnauthorized, domain.ErrUnauthenticated, "Missing or invalid identity")
		return
	}

	err := h.members.Leave(roomID, memberID, membership.ReasonExplicit)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRoomNotFound):
			json.WriteError(w, http.StatusNotFound, err, "Room not found")
		case errors.Is(err, domain.ErrMemberNotFound):
			json.WriteError(w, http.StatusNotFound, err, "You are not a member of this room")
		default:
			json.WriteInternalError(w, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteRoomHandler removes a room immediately. Members are told first;
// the eviction hooks then close their channels and drop room state.
func (h *Handler) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	h.fanout.Broadcast(roomID, ws.NewRoomDeleted(roomID), "")

	if err := h.registry.Delete(roomID); err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			json.WriteError(w, http.StatusNotFound, err, "Room not found")
			return
		}
		json.WriteInternalError(w, err)
		return
	}

	if err := h.publisher.RoomDeleted(r.Context(), roomID); err != nil {
		h.logger.Warnw("failed to publish room deleted event",
			"category", logging.RabbitMQ,
			string(logging.RoomId), roomID,
			"error", err,
		)
	}

	// Deletion is terminal: the persisted snapshot goes too, or the next
	// GET would resurrect the room.
	if h.snapshots != nil {
		if err := h.snapshots.Delete(r.Context(), roomID); err != nil {
			h.logger.Warnw("failed to delete room snapshot",
				"category", logging.Mongo,
				string(logging.RoomId), roomID,
				"error", err,
			)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetInviteHandler renders the shareable invite for a room.
func (h *Handler) GetInviteHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	if !h.registry.Exists(roomID) {
		json.WriteError(w, http.StatusNotFound, domain.ErrRoomNotFound, "Room not found")
		return
	}

	link := fmt.Sprintf("%s/room/%s", h.publicURL, url.PathEscape(roomID))

	json.Write(w, http.StatusOK, inviteResponse{
		RoomID: roomID,
		Link:   link,
		Text:   invite.FormatText(h.publicURL, roomID),
	})
}

// GetHistoryHandler returns retained chat, optionally only messages newer
// than ?since=<messageId>.
func (h *Handler) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomId")
	if roomID == "" {
		json.WriteValidationError(w, errors.New("room ID is missing"))
		return
	}

	if !h.registry.Exists(roomID) {
		json.WriteError(w, http.StatusNotFound, domain.ErrRoomNotFound, "Room not found")
		return
	}

	json.Write(w, http.StatusOK, historyResponse{
		RoomID:   roomID,
		Messages: h.chat.History(roomID, r.URL.Query().Get("since")),
	})
}

// restoreFromSnapshot is the lazy crash-recovery path: a room link that
// outlived a restart is rebuilt, paused, from its last persisted snapshot.
// Returns nil when no snapshot store is configured or nothing is persisted.
func (h *Handler) restoreFromSnapshot(ctx context.Context, roomID string) *domain.Room {
	if h.snapshots == nil {
		return nil
	}

	snapshot, err := h.snapshots.GetLatest(ctx, roomID)
	if err != nil {
		if !errors.Is(err, domain.ErrRoomNotFound) {
			h.logger.Warnw("failed to read room snapshot",
				"category", logging.Mongo,
				string(logging.RoomId), roomID,
				"error", err,
			)
		}
		return nil
	}

	room, err := h.registry.Restore(snapshot)
	if err != nil {
		h.logger.Warnw("failed to restore room from snapshot",
			"category", logging.Mongo,
			string(logging.RoomId), roomID,
			"error", err,
		)
		return nil
	}

	h.logger.Infow("room restored from snapshot",
		string(logging.RoomId), roomID,
		"revision", snapshot.Revision,
	)

	return room
}
