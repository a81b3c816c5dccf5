// Package alerts turns arbiter decisions into alert records and delivers them
// to webhook targets (Slack, Teams or generic HTTP). Records are kept in a
// store.Store so the API can list recent alerts and their dismissal state.
package alerts
