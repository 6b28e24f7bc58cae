package usecase

// DegradedAnswer exposes the canned local responses to tests
var DegradedAnswer = degradedAnswer
