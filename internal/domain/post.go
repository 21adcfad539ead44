package domain

import "time"

// Post is a blog entry addressed by its unique slug.
type Post struct {
	ID        string
	UserID    string
	Title     string
	Slug      string
	Content   string
	Tags      []Tag
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Tag labels posts; names are unique.
type Tag struct {
	ID   string
	Name string
}

// PostVersion is a snapshot of a post's title and content taken before it changed.
type PostVersion struct {
	ID        string
	PostID    string
	Version   int
	Title     string
	Content   string
	CreatedAt time.Time
}

// PostInput carries the editable fields of a post.
type PostInput struct {
	Title   string
	Slug    string
	Content string
}
