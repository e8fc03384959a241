// Package interfaces provides type aliases shared by the translator packages.
// It keeps translator registrations readable without importing the SDK package
// under a long name everywhere.
package interfaces

import (
	sdktranslator "github.com/router-for-me/AntiHubAPI/sdk/translator"
)

// Aliases for translator function types.
type TranslateRequestFunc = sdktranslator.RequestTransform

type TranslateResponseFunc = sdktranslator.ResponseStreamTransform

type TranslateResponseNonStreamFunc = sdktranslator.ResponseNonStreamTransform

type TranslateResponse = sdktranslator.ResponseTransform
