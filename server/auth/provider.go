// Package auth authenticates dashboard users against a Cognito user pool and keeps their
// sessions in the key-value store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserExists         = errors.New("user already exists")
	ErrNotConfirmed       = errors.New("user is not confirmed")
	ErrInvalidCode        = errors.New("invalid or expired confirmation code")
	ErrInvalidPassword    = errors.New("password does not meet the pool policy")
	ErrChallengeRequired  = errors.New("additional sign-in challenge required")
	ErrNoSession          = errors.New("no active session")
)

// CognitoAPI is the subset of the Cognito identity provider client used for user auth.
type CognitoAPI interface {
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	GlobalSignOut(ctx context.Context, params *cip.GlobalSignOutInput, optFns ...func(*cip.Options)) (*cip.GlobalSignOutOutput, error)
	ChangePassword(ctx context.Context, params *cip.ChangePasswordInput, optFns ...func(*cip.Options)) (*cip.ChangePasswordOutput, error)
	ForgotPassword(ctx context.Context, params *cip.ForgotPasswordInput, optFns ...func(*cip.Options)) (*cip.ForgotPasswordOutput, error)
}

// Registration is a new user account request.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Rank     string `json:"rank"`
	Unit     string `json:"unit"`
}

// Tokens are the credentials issued for a signed-in user.
type Tokens struct {
	AccessToken  string    `json:"accessToken"`
	IDToken      string    `json:"idToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Provider is the authentication provider seen by the session manager.
type Provider interface {
	Register(ctx context.Context, reg Registration) (confirmed bool, err error)
	ConfirmRegistration(ctx context.Context, username, code string) error
	Authenticate(ctx context.Context, username, password string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
	ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error
	ForgotPassword(ctx context.Context, username string) (destination string, err error)
}

// CognitoProvider implements Provider with a Cognito app client.
type CognitoProvider struct {
	api      CognitoAPI
	clientID string
	now      func() time.Time
}

// NewCognitoProvider creates a provider for the given app client
func NewCognitoProvider(api CognitoAPI, clientID string) *CognitoProvider {
	return &CognitoProvider{
		api:      api,
		clientID: clientID,
		now:      time.Now,
	}
}

// Register signs up a new user with the email, rank and unit attributes.
func (p *CognitoProvider) Register(ctx context.Context, reg Registration) (bool, error) {
	out, err := p.api.SignUp(ctx, &cip.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(reg.Username),
		Password: aws.String(reg.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(reg.Email)},
			{Name: aws.String("custom:rank"), Value: aws.String(reg.Rank)},
			{Name: aws.String("custom:unit"), Value: aws.String(reg.Unit)},
		},
	})
	if err != nil {
		return false, fmt.Errorf("sign up %s: %w", reg.Username, mapError(err))
	}
	return out.UserConfirmed, nil
}

// ConfirmRegistration confirms a sign-up with the code sent to the user.
func (p *CognitoProvider) ConfirmRegistration(ctx context.Context, username, code string) error {
	_, err := p.api.ConfirmSignUp(ctx, &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return fmt.Errorf("confirm sign up %s: %w", username, mapError(err))
	}
	return nil
}

// Authenticate signs a user in with USER_PASSWORD_AUTH.
func (p *CognitoProvider) Authenticate(ctx context.Context, username, password string) (*Tokens, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(p.clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("authenticate %s: %w", username, mapError(err))
	}
	return p.tokens(out, "")
}

// Refresh exchanges a refresh token for new access and ID tokens.
func (p *CognitoProvider) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		ClientId: aws.String(p.clientID),
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("refresh tokens: %w", mapError(err))
	}
	return p.tokens(out, refreshToken)
}

func (p *CognitoProvider) tokens(out *cip.InitiateAuthOutput, refreshToken string) (*Tokens, error) {
	if out.ChallengeName != "" {
		return nil, fmt.Errorf("%w: %s", ErrChallengeRequired, out.ChallengeName)
	}
	result := out.AuthenticationResult
	if result == nil || aws.ToString(result.AccessToken) == "" {
		return nil, fmt.Errorf("auth response missing tokens")
	}

	tokens := &Tokens{
		AccessToken:  aws.ToString(result.AccessToken),
		IDToken:      aws.ToString(result.IdToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresAt:    p.now().Add(time.Duration(result.ExpiresIn) * time.Second),
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

// SignOut invalidates every token issued to the user.
func (p *CognitoProvider) SignOut(ctx context.Context, accessToken string) error {
	if _, err := p.api.GlobalSignOut(ctx, &cip.GlobalSignOutInput{AccessToken: aws.String(accessToken)}); err != nil {
		return fmt.Errorf("global sign out: %w", mapError(err))
	}
	return nil
}

// ChangePassword changes the signed-in user's password.
func (p *CognitoProvider) ChangePassword(ctx context.Context, accessToken, oldPassword, newPassword string) error {
	_, err := p.api.ChangePassword(ctx, &cip.ChangePasswordInput{
		AccessToken:      aws.String(accessToken),
		PreviousPassword: aws.String(oldPassword),
		ProposedPassword: aws.String(newPassword),
	})
	if err != nil {
		return fmt.Errorf("change password: %w", mapError(err))
	}
	return nil
}

// ForgotPassword starts a password reset and returns where the code was sent.
func (p *CognitoProvider) ForgotPassword(ctx context.Context, username string) (string, error) {
	out, err := p.api.ForgotPassword(ctx, &cip.ForgotPasswordInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(username),
	})
	if err != nil {
		return "", fmt.Errorf("forgot password %s: %w", username, mapError(err))
	}
	if out.CodeDeliveryDetails == nil {
		return "", nil
	}
	return aws.ToString(out.CodeDeliveryDetails.Destination), nil
}

// mapError translates Cognito exceptions into this package's sentinel errors.
func mapError(err error) error {
	var (
		notAuthorized   *types.NotAuthorizedException
		userNotFound    *types.UserNotFoundException
		usernameExists  *types.UsernameExistsException
		notConfirmed    *types.UserNotConfirmedException
		codeMismatch    *types.CodeMismatchException
		expiredCode     *types.ExpiredCodeException
		invalidPassword *types.InvalidPasswordException
	)
	switch {
	case errors.As(err, &notAuthorized), errors.As(err, &userNotFound):
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	case errors.As(err, &usernameExists):
		return fmt.Errorf("%w: %v", ErrUserExists, err)
	case errors.As(err, &notConfirmed):
		return fmt.Errorf("%w: %v", ErrNotConfirmed, err)
	case errors.As(err, &codeMismatch), errors.As(err, &expiredCode):
		return fmt.Errorf("%w: %v", ErrInvalidCode, err)
	case errors.As(err, &invalidPassword):
		return fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	default:
		return err
	}
}
