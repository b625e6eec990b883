package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/GeorgesCH/studio-class-scheduler/internal/repository"
)

// WalletHandler exposes a customer's studio-credit balance and ledger.
type WalletHandler struct {
	Wallets *repository.WalletRepo
	Users   *repository.UserRepo
}

func NewWalletHandler(w *repository.WalletRepo, u *repository.UserRepo) *WalletHandler {
	if w == nil || u == nil {
		panic("nil dependency passed to NewWalletHandler")
	}
	return &WalletHandler{Wallets: w, Users: u}
}

// Balance handles GET /v1/me/wallet.
func (h *WalletHandler) Balance(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	walletID, err := h.Users.WalletID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load wallet"})
	}
	balance, err := h.Wallets.Balance(ctx, walletID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute balance"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"wallet_id":     walletID,
		"balance_cents": balance,
	})
}

// History handles GET /v1/me/wallet/transactions.
func (h *WalletHandler) History(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	walletID, err := h.Users.WalletID(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load wallet"})
	}
	txns, err := h.Wallets.History(ctx, walletID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load transactions"})
	}
	return c.JSON(http.StatusOK, echo.Map{"wallet_id": walletID, "transactions": txns})
}
