package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type Querier interface {
	// users
	CreateUser(ctx context.Context, arg CreateUserParams) (User, error)
	FindByEmail(ctx context.Context, email string) (User, error)
	FindByID(ctx context.Context, id pgtype.UUID) (User, error)
	UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error)
	UpdateUserRole(ctx context.Context, arg UpdateUserRoleParams) (User, error)
	CountUsers(ctx context.Context) (int64, error)

	// businesses
	CreateBusiness(ctx context.Context, arg CreateBusinessParams) (Business, error)
	FindBusinessByID(ctx context.Context, id pgtype.UUID) (Business, error)
	FindBusinessByEmail(ctx context.Context, email string) (Business, error)
	FindBusinessByAffiliateID(ctx context.Context, affiliateID string) (Business, error)
	FindBusinessByApiKey(ctx context.Context, apiKey string) (Business, error)
	UpdateBusinessProfile(ctx context.Context, arg UpdateBusinessProfileParams) (Business, error)
	UpdateBusinessApiKey(ctx context.Context, arg UpdateBusinessApiKeyParams) (Business, error)
	SetBusinessStatus(ctx context.Context, arg SetBusinessStatusParams) (Business, error)
	SetBusinessCommissionRate(ctx context.Context, arg SetBusinessCommissionRateParams) (Business, error)
	MarkBusinessDomainVerified(ctx context.Context, arg MarkBusinessDomainVerifiedParams) error
	IncrementBusinessClicks(ctx context.Context, id pgtype.UUID) error
	AddBusinessConversion(ctx context.Context, arg AddBusinessConversionParams) error
	ListBusinesses(ctx context.Context, arg ListBusinessesParams) ([]Business, error)
	CountBusinesses(ctx context.Context, search string) (int64, error)
	GetPlatformStats(ctx context.Context) (PlatformStatsRow, error)

	// favorites
	CreateFavorite(ctx context.Context, arg CreateFavoriteParams) (Favorite, error)
	ListFavoritesByUser(ctx context.Context, arg ListFavoritesByUserParams) ([]Favorite, error)
	CountFavoritesByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	DeleteFavorite(ctx context.Context, arg DeleteFavoriteParams) (int64, error)
	ListFavoriteUsersByProduct(ctx context.Context, productID pgtype.UUID) ([]FavoriteUserRow, error)

	// products
	UpsertProduct(ctx context.Context, arg UpsertProductParams) (Product, error)
	FindProductByID(ctx context.Context, id pgtype.UUID) (Product, error)
	FindProductByURL(ctx context.Context, url string) (Product, error)
	UpdateProductPrice(ctx context.Context, arg UpdateProductPriceParams) error
	ListProductsToRefresh(ctx context.Context) ([]Product, error)
	CreatePriceSnapshot(ctx context.Context, arg CreatePriceSnapshotParams) (PriceSnapshot, error)
	GetLatestPriceSnapshot(ctx context.Context, productID pgtype.UUID) (PriceSnapshot, error)
	ListPriceSnapshots(ctx context.Context, arg ListPriceSnapshotsParams) ([]PriceSnapshot, error)

	// tracking
	CreateClickLog(ctx context.Context, arg CreateClickLogParams) (ClickLog, error)
	FindClickByClickID(ctx context.Context, clickID string) (ClickLog, error)
	ListClicksByBusiness(ctx context.Context, arg ListByBusinessParams) ([]ClickLog, error)
	CountClicksByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error)
	CreateConversion(ctx context.Context, arg CreateConversionParams) (Conversion, error)
	FindConversionByOrder(ctx context.Context, arg FindConversionByOrderParams) (Conversion, error)
	ListConversionsByBusiness(ctx context.Context, arg ListByBusinessParams) ([]ConversionWithCommissionRow, error)
	CountConversionsByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error)
	CreateSale(ctx context.Context, arg CreateSaleParams) (Sale, error)
	CreateCommission(ctx context.Context, arg CreateCommissionParams) (Commission, error)
	ListCommissionsByBusiness(ctx context.Context, arg ListByBusinessParams) ([]CommissionRow, error)
	CountCommissionsByBusiness(ctx context.Context, businessID pgtype.UUID) (int64, error)
	UpdateCommissionStatus(ctx context.Context, arg UpdateCommissionStatusParams) (Commission, error)
	SumCommissionsByStatus(ctx context.Context, businessID pgtype.UUID) ([]CommissionSumRow, error)
	DailyClicks(ctx context.Context, arg DailyCountParams) ([]DailyCountRow, error)
	DailyConversions(ctx context.Context, arg DailyCountParams) ([]DailyCountRow, error)
	CreateTrackingEvent(ctx context.Context, arg CreateTrackingEventParams) (TrackingEvent, error)

	// webhooks
	CreateWebhook(ctx context.Context, arg CreateWebhookParams) (Webhook, error)
	ListWebhooksByBusiness(ctx context.Context, businessID pgtype.UUID) ([]Webhook, error)
	FindWebhook(ctx context.Context, arg FindWebhookParams) (Webhook, error)
	DeleteWebhook(ctx context.Context, arg FindWebhookParams) (int64, error)
	ListActiveWebhooksForEvent(ctx context.Context, arg ListActiveWebhooksForEventParams) ([]Webhook, error)
	CreateWebhookDelivery(ctx context.Context, arg CreateWebhookDeliveryParams) (WebhookDelivery, error)
	MarkDeliverySucceeded(ctx context.Context, arg MarkDeliverySucceededParams) error
	MarkDeliveryFailed(ctx context.Context, arg MarkDeliveryFailedParams) error
	ListDueDeliveries(ctx context.Context, arg ListDueDeliveriesParams) ([]DueDeliveryRow, error)
	ListDeliveriesByWebhook(ctx context.Context, arg ListDeliveriesByWebhookParams) ([]WebhookDelivery, error)

	// domain verification
	CreateDomainVerification(ctx context.Context, arg CreateDomainVerificationParams) (DomainVerification, error)
	FindLatestDomainVerification(ctx context.Context, businessID pgtype.UUID) (DomainVerification, error)
	MarkDomainVerificationVerified(ctx context.Context, id pgtype.UUID) (DomainVerification, error)
	MarkDomainVerificationFailed(ctx context.Context, arg MarkDomainVerificationFailedParams) (DomainVerification, error)
}

var _ Querier = (*Queries)(nil)
