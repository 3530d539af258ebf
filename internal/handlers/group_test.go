package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quix-messaging/internal/mocks"
	"quix-messaging/internal/models"
	"quix-messaging/internal/repositories"
)

func setupGroupRouter(handler *GroupHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/groups", handler.CreateGroup)
	r.GET("/groups", handler.ListGroups)
	r.GET("/groups/:group_id", handler.GetGroup)
	r.POST("/groups/:group_id/members", handler.AddMember)
	r.DELETE("/groups/:group_id/members/:user_id", handler.RemoveMember)
	return r
}

func adminGroup(id int, visibility string) models.Group {
	return models.Group{
		ID:         id,
		Name:       "algebra study",
		Visibility: visibility,
		CreatorID:  1,
		Members:    []models.Member{{GroupID: id, UserID: 1, Role: models.RoleAdmin}},
	}
}

func TestCreateGroupSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("CreateGroup", mock.Anything, 1, "algebra study", "weekly problems", "private", models.GroupSettings{ReadReceiptsEnabled: true}).
		Return(adminGroup(5, models.VisibilityPrivate), nil).Once()

	body := bytes.NewBufferString(`{"name":"algebra study","description":"weekly problems","settings":{"read_receipts_enabled":true}}`)
	req := httptest.NewRequest(http.MethodPost, "/groups", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestCreateGroupInvalidBody(t *testing.T) {
	handler := NewGroupHandler(new(mocks.GroupRepositoryMock), nil)
	router := setupGroupRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/groups", bytes.NewBufferString(`{"name":5}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGroupRejectsUnknownVisibility(t *testing.T) {
	handler := NewGroupHandler(new(mocks.GroupRepositoryMock), nil)
	router := setupGroupRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/groups", bytes.NewBufferString(`{"name":"x","visibility":"secret"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListGroupsSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("ListUserGroups", mock.Anything, 1).Return([]models.Group{adminGroup(5, models.VisibilityPrivate)}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestGetGroupPrivateHiddenFromNonMembers(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	private := models.Group{ID: 9, Visibility: models.VisibilityPrivate}
	groupRepo.On("GetGroup", mock.Anything, 9).Return(private, nil).Once()
	groupRepo.On("IsMember", mock.Anything, 9, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestGetGroupPublicVisibleToAnyone(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 9).Return(adminGroup(9, models.VisibilityPublic), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	groupRepo.AssertNotCalled(t, "IsMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetGroupNotFound(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 9).Return(models.Group{}, repositories.ErrGroupNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddMemberSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 5).Return(adminGroup(5, models.VisibilityPrivate), nil).Once()
	groupRepo.On("AddMember", mock.Anything, 5, 2, "member").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/5/members", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestAddMemberConflictOnActiveDuplicate(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 5).Return(adminGroup(5, models.VisibilityPrivate), nil).Once()
	groupRepo.On("AddMember", mock.Anything, 5, 2, "member").Return(repositories.ErrAlreadyMember).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/5/members", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAddMemberForbiddenWhenInvitesDisabled(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	group := models.Group{
		ID:         5,
		Visibility: models.VisibilityPrivate,
		Members:    []models.Member{{GroupID: 5, UserID: 1, Role: models.RoleMember}},
	}
	groupRepo.On("GetGroup", mock.Anything, 5).Return(group, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/5/members", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertNotCalled(t, "AddMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAddMemberAllowedWhenInvitesEnabled(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	group := models.Group{
		ID:            5,
		Visibility:    models.VisibilityPrivate,
		GroupSettings: models.GroupSettings{AllowMemberInvites: true},
		Members:       []models.Member{{GroupID: 5, UserID: 1, Role: models.RoleMember}},
	}
	groupRepo.On("GetGroup", mock.Anything, 5).Return(group, nil).Once()
	groupRepo.On("AddMember", mock.Anything, 5, 2, "member").Return(nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/groups/5/members", bytes.NewBufferString(`{"user_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	groupRepo.AssertExpectations(t)
}

func TestRemoveMemberSelfLeave(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("RemoveMember", mock.Anything, 5, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/5/members/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	groupRepo.AssertNotCalled(t, "GetGroup", mock.Anything, mock.Anything)
}

func TestRemoveMemberRequiresAdminForOthers(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	group := models.Group{
		ID:      5,
		Members: []models.Member{{GroupID: 5, UserID: 1, Role: models.RoleMember}},
	}
	groupRepo.On("GetGroup", mock.Anything, 5).Return(group, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/5/members/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	groupRepo.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveMemberAdminRemovesOther(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	handler := NewGroupHandler(groupRepo, nil)
	router := setupGroupRouter(handler)

	groupRepo.On("GetGroup", mock.Anything, 5).Return(adminGroup(5, models.VisibilityPrivate), nil).Once()
	groupRepo.On("RemoveMember", mock.Anything, 5, 2).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/groups/5/members/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	groupRepo.AssertExpectations(t)
}
