package service

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/xiaodingfeng/contract-review/model"
)

// EditorDocument describes the file the external editor should open.
type EditorDocument struct {
	FileType string `json:"fileType"`
	Key      string `json:"key"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// EditorUser identifies the editing user inside the editor UI.
type EditorUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EditorCustomization carries editor behavior flags. Forcesave makes the
// editor fire the save callback on every explicit user save instead of
// batching edits.
type EditorCustomization struct {
	Forcesave bool `json:"forcesave"`
}

// EditorConfigPayload is the editorConfig section of the session config.
type EditorConfigPayload struct {
	CallbackURL   string              `json:"callbackUrl"`
	Lang          string              `json:"lang,omitempty"`
	Mode          string              `json:"mode"`
	User          EditorUser          `json:"user"`
	Customization EditorCustomization `json:"customization"`
}

// EditorSessionConfig is the full signed payload handed to the external
// document editor. Token is the HS256 signature over everything else.
type EditorSessionConfig struct {
	Document     EditorDocument      `json:"document"`
	DocumentType string              `json:"documentType"`
	EditorConfig EditorConfigPayload `json:"editorConfig"`
	Token        string              `json:"token,omitempty"`
}

// editorClaims mirrors EditorSessionConfig minus the token so the signed
// claims cover exactly the fields the editor verifies.
type editorClaims struct {
	Document     EditorDocument      `json:"document"`
	DocumentType string              `json:"documentType"`
	EditorConfig EditorConfigPayload `json:"editorConfig"`
	jwt.RegisteredClaims
}

// EditorService builds signed editor session configs. It is pure: all
// inputs come from the constructor and the contract record, so the same
// contract always produces the same payload.
type EditorService struct {
	baseURL string
	secret  []byte
	lang    string
}

// NewEditorService fails when the shared secret is unset; an unsigned
// config is rejected by the editor, so this is a startup error rather
// than something to discover per request.
func NewEditorService(baseURL, jwtSecret, lang string) (*EditorService, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("editor JWT secret is not configured")
	}
	return &EditorService{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  []byte(jwtSecret),
		lang:    lang,
	}, nil
}

// FileURL returns the externally reachable download URL for the
// contract's current file content. It points at the live upload
// directory, not a snapshot, so callback saves are visible immediately.
func (s *EditorService) FileURL(contract *model.Contract) string {
	return fmt.Sprintf("%s/uploads/%s", s.baseURL, filepath.Base(contract.StoragePath))
}

// CallbackURL returns the save-callback endpoint the editor posts to.
func (s *EditorService) CallbackURL() string {
	return s.baseURL + "/api/contracts/save-callback"
}

// BuildConfig assembles and signs the editor session config for a
// contract. It is rebuilt fresh on every call; nothing is cached.
func (s *EditorService) BuildConfig(contract *model.Contract) (*EditorSessionConfig, error) {
	userID := contract.UserID
	if userID == "" {
		userID = "unknown"
	}

	claims := editorClaims{
		Document: EditorDocument{
			FileType: "docx",
			Key:      contract.DocumentKey,
			Title:    model.DecodeStoredFilename(contract.OriginalFilename),
			URL:      s.FileURL(contract),
		},
		DocumentType: "word",
		EditorConfig: EditorConfigPayload{
			CallbackURL: s.CallbackURL(),
			Lang:        s.lang,
			Mode:        "edit",
			User: EditorUser{
				ID:   "user-" + userID,
				Name: "Reviewer",
			},
			Customization: EditorCustomization{
				Forcesave: true,
			},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign editor config: %w", err)
	}

	return &EditorSessionConfig{
		Document:     claims.Document,
		DocumentType: claims.DocumentType,
		EditorConfig: claims.EditorConfig,
		Token:        token,
	}, nil
}
