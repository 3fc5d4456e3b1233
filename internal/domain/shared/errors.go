package shared

import "errors"

// Domain-specific errors
var (
	// Auction errors
	ErrAuctionNotFound  = errors.New("auction not found")
	ErrAuctionNotActive = errors.New("auction is not active")
	ErrSelfBid          = errors.New("you cannot bid on your own auction")
	ErrBidTooLow        = errors.New("bid must be greater than the current price")
	ErrTitleRequired    = errors.New("title is required")
	ErrTitleTooLong     = errors.New("title cannot exceed 100 characters")
	ErrDescriptionLong  = errors.New("description cannot exceed 1000 characters")
	ErrStartPriceLow    = errors.New("start price is below the minimum")
	ErrDurationTooShort = errors.New("auction duration is below the minimum")
	ErrDurationTooLong  = errors.New("auction duration exceeds the maximum")
	ErrCancelNotActive  = errors.New("only active auctions can be cancelled")

	// User errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameRequired   = errors.New("username is required")
	ErrUsernameTooShort   = errors.New("username must have at least 3 characters")
	ErrUsernameTooLong    = errors.New("username cannot exceed 20 characters")
	ErrUsernameInvalid    = errors.New("username may only contain lowercase letters, digits and underscores")
	ErrUsernameTaken      = errors.New("username is already in use")
	ErrPasswordTooShort   = errors.New("password must have at least 3 characters")
	ErrEmailInvalid       = errors.New("email address is not valid")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountBlocked     = errors.New("account is blocked, contact an administrator")
	ErrSelfBlock          = errors.New("you cannot block yourself")

	// Session errors
	ErrSessionInvalid = errors.New("session is invalid or expired")
	ErrAdminRequired  = errors.New("permission denied, ADMIN role required")

	// Protocol errors
	ErrActionRequired    = errors.New("action is required")
	ErrUnknownAction     = errors.New("unknown action")
	ErrAuctionIDRequired = errors.New("auctionId is required")
	ErrAmountRequired    = errors.New("valid amount is required")
	ErrMalformedMessage  = errors.New("malformed message")
	ErrFrameTooLarge     = errors.New("frame exceeds maximum size")
	ErrConnectionStopped = errors.New("connection is stopped")
)
