package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const uploadIssuer = "boingbox-storage"

// UploadClaims binds an upload token to one media record and its uploader.
type UploadClaims struct {
	FileID     uuid.UUID `json:"file_id"`
	UploaderID uuid.UUID `json:"uploader_id"`
	jwt.RegisteredClaims
}

// UploadTokenManager issues and verifies upload tokens
type UploadTokenManager struct {
	secretKey string
	validity  time.Duration
	now       func() time.Time
}

// NewUploadTokenManager creates a manager whose tokens stay valid for validity.
func NewUploadTokenManager(secretKey string, validity time.Duration) *UploadTokenManager {
	return &UploadTokenManager{
		secretKey: secretKey,
		validity:  validity,
		now:       time.Now,
	}
}

// Issue signs a token for fileID and returns it with its expiry.
func (m *UploadTokenManager) Issue(fileID, uploaderID uuid.UUID) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.validity)
	claims := &UploadClaims{
		FileID:     fileID,
		UploaderID: uploaderID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    uploadIssuer,
			Subject:   fileID.String(),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(m.secretKey))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign upload token: %w", err)
	}

	return tokenString, expiresAt, nil
}

// Validate parses tokenString and checks that it was issued for fileID.
func (m *UploadTokenManager) Validate(tokenString string, fileID uuid.UUID) (*UploadClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UploadClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.secretKey), nil
	}, jwt.WithIssuer(uploadIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse upload token: %w", err)
	}

	claims, ok := token.Claims.(*UploadClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid upload token")
	}
	if claims.FileID != fileID {
		return nil, fmt.Errorf("upload token was issued for another file")
	}

	return claims, nil
}
