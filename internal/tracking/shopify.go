package tracking

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/freitasmatheusrn/pricecompare/internal/database"
	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/rest"
	"github.com/freitasmatheusrn/pricecompare/pkg/signature"
	"go.uber.org/zap"
)

const (
	TopicOrdersCreate = "orders/create"
	TopicOrdersPaid   = "orders/paid"
)

type shopifyOrder struct {
	ID             json.Number `json:"id"`
	Name           string      `json:"name"`
	TotalPrice     Amount      `json:"total_price"`
	Currency       string      `json:"currency"`
	LandingSite    string      `json:"landing_site"`
	NoteAttributes []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"note_attributes"`
}

func (s *svc) HandleShopify(ctx context.Context, affiliateID, topic, hmacHeader string, body []byte) (*ShopifyResult, *rest.ApiErr) {
	b, apiErr := s.ResolveByAffiliateID(ctx, affiliateID)
	if apiErr != nil {
		return nil, apiErr
	}

	if err := signature.VerifyShopify(b.ShopifySecret, body, hmacHeader); err != nil {
		s.logger.Warn("rejected shopify webhook",
			zap.String("affiliate_id", b.AffiliateID),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil, rest.NewUnauthorizedRequestError("assinatura inválida")
	}

	topic = strings.ToLower(strings.TrimSpace(topic))
	result := &ShopifyResult{Topic: topic}

	if topic == TopicOrdersCreate || topic == TopicOrdersPaid {
		var order shopifyOrder
		if err := json.Unmarshal(body, &order); err != nil {
			return nil, rest.NewBadRequestError("pedido inválido")
		}

		orderID := order.ID.String()
		if orderID == "" {
			orderID = order.Name
		}

		conv, apiErr := s.RecordConversion(ctx, b, ConversionInput{
			OrderID:  orderID,
			Amount:   order.TotalPrice,
			Currency: order.Currency,
			ClickID:  shopifyClickID(order),
		}, SourceShopify)
		if apiErr != nil {
			return nil, apiErr
		}
		result.Conversion = conv
		return result, nil
	}

	var data []byte
	if json.Valid(body) {
		data = body
	}
	ev, err := s.repo.CreateTrackingEvent(ctx, repo.CreateTrackingEventParams{
		BusinessID: b.ID,
		EventType:  "shopify:" + topic,
		Data:       data,
	})
	if err != nil {
		return nil, database.HandleError(err, "empresa não encontrada")
	}
	result.EventID = &ev.ID
	return result, nil
}

// shopifyClickID looks for the click id in the order note attributes first and
// then in the landing page query string.
func shopifyClickID(order shopifyOrder) string {
	for _, attr := range order.NoteAttributes {
		if attr.Name == ClickParam && strings.TrimSpace(attr.Value) != "" {
			return strings.TrimSpace(attr.Value)
		}
	}
	if order.LandingSite == "" {
		return ""
	}
	u, err := url.Parse(order.LandingSite)
	if err != nil {
		return ""
	}
	return u.Query().Get(ClickParam)
}
