package httpserver

import (
	"encoding/json"
	"net/http"

	"chatserver/internal/service"
	"chatserver/internal/ws"
)

type groupCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type groupMemberRequest struct {
	UserID int64 `json:"user_id"`
}

func handleCreateGroup(groupSvc *service.GroupService, wsRouter *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		var req groupCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		group, err := groupSvc.Create(r.Context(), service.GroupCreateInput{
			Name:        req.Name,
			Description: req.Description,
			CreatorID:   user.ID,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		wsRouter.NotifyGroupCreated(group)
		writeJSON(w, http.StatusCreated, group)
	}
}

func handleListMyGroups(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		groups, err := groupSvc.ListForUser(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleListCreatedGroups(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		groups, err := groupSvc.ListCreatedBy(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

func handleGroupDetail(groupSvc *service.GroupService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		id, err := pathID(r, "groupID")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		detail, err := groupSvc.Detail(r.Context(), id, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

func handleAddGroupMember(groupSvc *service.GroupService, wsRouter *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		id, err := pathID(r, "groupID")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		var req groupMemberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		group, member, err := groupSvc.AddUser(r.Context(), id, req.UserID, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		wsRouter.NotifyUserAdded(group, member)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRemoveGroupMember(groupSvc *service.GroupService, wsRouter *ws.Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := CurrentUser(r)
		if user == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		groupID, err := pathID(r, "groupID")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid group id"})
			return
		}
		userID, err := pathID(r, "userID")
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid user id"})
			return
		}

		group, member, err := groupSvc.RemoveUser(r.Context(), groupID, userID, user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		wsRouter.NotifyUserRemoved(group, member)
		w.WriteHeader(http.StatusNoContent)
	}
}
