package http

import (
	"time"

	"quillpost/internal/domain"
)

type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsActive    bool   `json:"is_active"`
	IsSuperuser bool   `json:"is_superuser"`
	CreatedAt   string `json:"created_at"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type TagResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type PostResponse struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Title     string        `json:"title"`
	Slug      string        `json:"slug"`
	Content   string        `json:"content"`
	Tags      []TagResponse `json:"tags"`
	CreatedAt string        `json:"created_at"`
	UpdatedAt string        `json:"updated_at"`
}

type PostVersionResponse struct {
	ID        string `json:"id"`
	PostID    string `json:"post_id"`
	Version   int    `json:"version"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func userToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		IsActive:    user.IsActive,
		IsSuperuser: user.IsSuperuser,
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
}

func postToResponse(post domain.Post) PostResponse {
	return PostResponse{
		ID:        post.ID,
		UserID:    post.UserID,
		Title:     post.Title,
		Slug:      post.Slug,
		Content:   post.Content,
		Tags:      tagsToResponse(post.Tags),
		CreatedAt: post.CreatedAt.Format(time.RFC3339),
		UpdatedAt: post.UpdatedAt.Format(time.RFC3339),
	}
}

func tagsToResponse(tags []domain.Tag) []TagResponse {
	resp := make([]TagResponse, len(tags))
	for i := range tags {
		resp[i] = TagResponse{ID: tags[i].ID, Name: tags[i].Name}
	}
	return resp
}

func versionToResponse(version domain.PostVersion) PostVersionResponse {
	return PostVersionResponse{
		ID:        version.ID,
		PostID:    version.PostID,
		Version:   version.Version,
		Title:     version.Title,
		Content:   version.Content,
		CreatedAt: version.CreatedAt.Format(time.RFC3339),
	}
}
