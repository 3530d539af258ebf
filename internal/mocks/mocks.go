package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"quix-messaging/internal/auth"
	"quix-messaging/internal/models"
	"quix-messaging/internal/presence"
	"quix-messaging/internal/repositories"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, creatorID int, name, description, visibility string, settings models.GroupSettings) (models.Group, error) {
	args := m.Called(ctx, creatorID, name, description, visibility, settings)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) AddMember(ctx context.Context, groupID, userID int, role string) error {
	args := m.Called(ctx, groupID, userID, role)
	return args.Error(0)
}

func (m *GroupRepositoryMock) RemoveMember(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) ListUserGroups(ctx context.Context, userID int) ([]models.Group, error) {
	args := m.Called(ctx, userID)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	args := m.Called(ctx, groupID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *GroupRepositoryMock) ActiveMemberIDs(ctx context.Context, groupID int) ([]int, error) {
	args := m.Called(ctx, groupID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, groupID, senderID int, content, msgType string, metadata models.MessageMetadata) (models.Message, error) {
	args := m.Called(ctx, groupID, senderID, content, msgType, metadata)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessages(ctx context.Context, groupID, limit int, before *time.Time, beforeID int) ([]models.Message, error) {
	args := m.Called(ctx, groupID, limit, before, beforeID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkAsRead(ctx context.Context, messageID, userID int) error {
	args := m.Called(ctx, messageID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) MarkAllAsRead(ctx context.Context, groupID, userID int) error {
	args := m.Called(ctx, groupID, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) SearchMessages(ctx context.Context, groupID int, query string, limit int) ([]models.Message, error) {
	args := m.Called(ctx, groupID, query, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetUnreadCount(ctx context.Context, userID, groupID int) (int, error) {
	args := m.Called(ctx, userID, groupID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) GetTotalUnreadCount(ctx context.Context, userID int) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) GetConversation(ctx context.Context, groupID int) (models.Conversation, error) {
	args := m.Called(ctx, groupID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) ListConversations(ctx context.Context, userID int) ([]models.Conversation, error) {
	args := m.Called(ctx, userID)
	var convs []models.Conversation
	if val := args.Get(0); val != nil {
		convs = val.([]models.Conversation)
	}
	return convs, args.Error(1)
}

type TrackerMock struct {
	mock.Mock
}

func (m *TrackerMock) SetTyping(ctx context.Context, userID, groupID int, isTyping bool) error {
	args := m.Called(ctx, userID, groupID, isTyping)
	return args.Error(0)
}

func (m *TrackerMock) TypingUsers(ctx context.Context, groupID int) ([]int, error) {
	args := m.Called(ctx, groupID)
	var users []int
	if val := args.Get(0); val != nil {
		users = val.([]int)
	}
	return users, args.Error(1)
}

type BridgeMock struct {
	mock.Mock
}

func (m *BridgeMock) PublishMessage(ctx context.Context, msg models.Message) {
	m.Called(ctx, msg)
}

func (m *BridgeMock) PublishTyping(ctx context.Context, userID, groupID int, isTyping bool) {
	m.Called(ctx, userID, groupID, isTyping)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(ctx context.Context, token string) (int, error) {
	args := m.Called(ctx, token)
	return args.Int(0), args.Error(1)
}

var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.ConversationRepository = (*ConversationRepositoryMock)(nil)
var _ presence.Tracker = (*TrackerMock)(nil)
var _ auth.TokenVerifier = (*VerifierMock)(nil)
