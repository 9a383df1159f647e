package github

import (
	"time"

	"github.com/goliatone/go-docsync/pkg/interfaces"
)

type treeQuery struct {
	Recursive int `url:"recursive"`
}

type contentsQuery struct {
	Ref string `url:"ref,omitempty"`
}

type compareQuery struct {
	Page    int `url:"page,omitempty"`
	PerPage int `url:"per_page,omitempty"`
}

type commitResponse struct {
	SHA    string `json:"sha"`
	Commit struct {
		Message string `json:"message"`
		Author  struct {
			Name string    `json:"name"`
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
}

func (r commitResponse) commit() *interfaces.Commit {
	return &interfaces.Commit{
		Hash:    r.SHA,
		Message: r.Commit.Message,
		Author:  r.Commit.Author.Name,
		Date:    r.Commit.Author.Date.UTC(),
	}
}

type treeResponse struct {
	SHA  string `json:"sha"`
	Tree []struct {
		Path string `json:"path"`
		Type string `json:"type"`
	} `json:"tree"`
	Truncated bool `json:"truncated"`
}

type contentResponse struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

type compareResponse struct {
	Files []struct {
		Filename         string `json:"filename"`
		Status           string `json:"status"`
		PreviousFilename string `json:"previous_filename"`
	} `json:"files"`
}

type branchResponse struct {
	Name string `json:"name"`
}
