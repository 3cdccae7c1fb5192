package model

import "github.com/golang-jwt/jwt/v5"

// ReviewerClaims are JWT claims for the report API
type ReviewerClaims struct {
	ReviewerID string `json:"reviewerId"`
	jwt.RegisteredClaims
}

// LoginRequest is the request body for reviewer login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful login
type LoginResponse struct {
	Token      string `json:"token"`
	ReviewerID string `json:"reviewerId"`
}

// StartRunRequest is the body of POST /v1/runs
type StartRunRequest struct {
	Variant          *int   `json:"template,omitempty"`
	Language         string `json:"language,omitempty"`
	AugmentationMode string `json:"augmentation_mode,omitempty"`
	ShowDishName     *bool  `json:"show_food_name,omitempty"`
	UseWebImage      *bool  `json:"use_web_image,omitempty"`
	Adaptive         *bool  `json:"adaptive,omitempty"`
	Limit            int    `json:"limit,omitempty"` // Evaluate only the first N questions
}
