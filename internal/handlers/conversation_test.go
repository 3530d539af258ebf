package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"quix-messaging/internal/mocks"
	"quix-messaging/internal/models"
	"quix-messaging/internal/repositories"
)

func setupConversationRouter(groupRepo *mocks.GroupRepositoryMock, convRepo *mocks.ConversationRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewConversationHandler(groupRepo, convRepo)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/conversations", handler.ListConversations)
	r.GET("/groups/:group_id/conversation", handler.GetConversation)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(groupRepo, convRepo)

	convRepo.On("ListConversations", mock.Anything, 1).
		Return([]models.Conversation{{GroupID: 5, ParticipantIDs: pq.Int64Array{1, 2}}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestGetConversationForbiddenForNonMembers(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(groupRepo, convRepo)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/5/conversation", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	convRepo.AssertNotCalled(t, "GetConversation", mock.Anything, mock.Anything)
}

func TestGetConversationNotFound(t *testing.T) {
	groupRepo := new(mocks.GroupRepositoryMock)
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(groupRepo, convRepo)

	groupRepo.On("IsMember", mock.Anything, 5, 1).Return(true, nil).Once()
	convRepo.On("GetConversation", mock.Anything, 5).Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/groups/5/conversation", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
