package notification

import "fmt"

type Notification interface {
	Send(to, msg string) error
}

func SaleMessage(businessName, orderID, amount string) string {
	return fmt.Sprintf("%s: nova venda via afiliado. Pedido %s, valor %s", businessName, orderID, amount)
}
