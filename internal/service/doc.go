// Package service contains the application services: accounts, the activity
// submission pipeline with its ledger and badge catalog, quests, the
// leaderboard and the assistant.
package service
