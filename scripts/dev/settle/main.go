package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/vultisig/fluidpay/api"
	"github.com/vultisig/fluidpay/config"
	"github.com/vultisig/fluidpay/internal/sigutil"
	"github.com/vultisig/fluidpay/internal/types"
)

var keyHex string
var configName string

func main() {
	flag.StringVar(&keyHex, "key", os.Getenv("FP_DEV_KEY"), "hex private key of the paying account")
	flag.StringVar(&configName, "config", "config", "server config name")
	flag.Parse()

	if keyHex == "" {
		panic("private key is required")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		panic(err)
	}
	caller := crypto.PubkeyToAddress(key.PublicKey)
	fmt.Printf("Paying account: %s\n", caller.Hex())

	serverConfig, err := config.ReadConfig(configName)
	if err != nil {
		panic(err)
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Enter token contract address: ")
	token, _ := reader.ReadString('\n')
	token = strings.TrimSpace(token)

	fmt.Print("Enter the input amount in the token's smallest unit: ")
	amount, _ := reader.ReadString('\n')
	amount = strings.TrimSpace(amount)

	fmt.Print("Enter the minimum USDC out (empty for none): ")
	minOut, _ := reader.ReadString('\n')
	minOut = strings.TrimSpace(minOut)

	req := types.SettleRequest{
		RequestID: uuid.NewString(),
		Token:     token,
		Amount:    amount,
		MinOut:    minOut,
		Timestamp: time.Now().Unix(),
	}
	reqBytes, err := json.Marshal(req)
	if err != nil {
		panic(err)
	}
	signature, err := sigutil.Sign(reqBytes, key)
	if err != nil {
		panic(err)
	}

	host := serverConfig.Server.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	serverURL := fmt.Sprintf("http://%s:%d/settlements", host, serverConfig.Server.Port)
	fmt.Printf("Settling %s of %s on %s\n", amount, token, serverURL)

	httpReq, err := http.NewRequest(http.MethodPost, serverURL, bytes.NewReader(reqBytes))
	if err != nil {
		panic(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(api.HeaderCaller, caller.Hex())
	httpReq.Header.Set(api.HeaderSignature, signature)

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		panic(err)
	}
	fmt.Printf("Response %d: %s\n", resp.StatusCode, body)
}
