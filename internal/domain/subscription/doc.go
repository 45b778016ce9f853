// Package subscription holds the recurring-payment aggregate, its billing
// cycles, and the service that folds a user's subscriptions into a single
// monthly figure in a base currency.
package subscription
