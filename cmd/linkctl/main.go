// linkctl 运维排障 CLI：派生密钥、编解码帧、向控制器发帧或监听收帧
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lbeast-live/link-server/internal/protocol/lbeast"
	"github.com/lbeast-live/link-server/internal/transport"
)

var (
	flagSecret  string
	flagLevel   string
	flagChannel uint8
	flagType    string
)

func parseLevel(s string) (lbeast.SecurityLevel, error) {
	switch s {
	case "", "none":
		return lbeast.SecurityNone, nil
	case "hmac":
		return lbeast.SecurityHMAC, nil
	case "encrypted":
		return lbeast.SecurityEncrypted, nil
	default:
		return 0, fmt.Errorf("unknown security level %q", s)
	}
}

// parseValue 把命令行字面量转为类型化值
func parseValue(typ, raw string) (lbeast.Value, error) {
	switch typ {
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return lbeast.Value{}, err
		}
		return lbeast.BoolValue(b), nil
	case "int32":
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return lbeast.Value{}, err
		}
		return lbeast.Int32Value(int32(n)), nil
	case "float":
		f, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			return lbeast.Value{}, err
		}
		return lbeast.FloatValue(float32(f)), nil
	case "string":
		return lbeast.StringValue(raw), nil
	case "bytes":
		b, err := hex.DecodeString(raw)
		if err != nil {
			return lbeast.Value{}, err
		}
		return lbeast.BytesValue(b), nil
	case "struct":
		b, err := hex.DecodeString(raw)
		if err != nil {
			return lbeast.Value{}, err
		}
		return lbeast.StructValue(b), nil
	default:
		return lbeast.Value{}, fmt.Errorf("unknown value type %q", typ)
	}
}

func formatValue(v lbeast.Value) string {
	switch v.Type {
	case lbeast.TypeBool:
		return strconv.FormatBool(v.Bool)
	case lbeast.TypeInt32:
		return strconv.FormatInt(int64(v.Int32), 10)
	case lbeast.TypeFloat:
		return strconv.FormatFloat(float64(v.Float), 'g', -1, 32)
	case lbeast.TypeString:
		return strconv.Quote(v.Str)
	default:
		return hex.EncodeToString(v.Bytes)
	}
}

func newCodec() (*lbeast.Codec, error) {
	level, err := parseLevel(flagLevel)
	if err != nil {
		return nil, err
	}
	return lbeast.NewCodec(level, flagSecret)
}

func newKeysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Derive AES/HMAC keys from the shared secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			aesKey, hmacKey := lbeast.DeriveKeys(flagSecret)
			fmt.Printf("aes:  %s\n", hex.EncodeToString(aesKey[:]))
			fmt.Printf("hmac: %s\n", hex.EncodeToString(hmacKey[:]))
			return nil
		},
	}
}

func newEncodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "encode <value>",
		Short: "Encode one frame and print it as hex",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValue(flagType, args[0])
			if err != nil {
				return err
			}
			codec, err := newCodec()
			if err != nil {
				return err
			}
			frame, err := codec.Encode(flagChannel, v)
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(frame))
			return nil
		},
	}
}

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <hex>",
		Short: "Decode one hex-encoded frame",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hex.DecodeString(args[0])
			if err != nil {
				return err
			}
			codec, err := newCodec()
			if err != nil {
				return err
			}
			d, err := codec.Decode(raw)
			if err != nil {
				return err
			}
			fmt.Printf("channel=%d type=%s value=%s\n", d.Channel, d.Value.Type, formatValue(d.Value))
			if d.HasCounter {
				fmt.Printf("iv=%d\n", d.Counter)
			}
			return nil
		},
	}
}

func newSendCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "send <value>",
		Short: "Encode one frame and send it over UDP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseValue(flagType, args[0])
			if err != nil {
				return err
			}
			codec, err := newCodec()
			if err != nil {
				return err
			}
			frame, err := codec.Encode(flagChannel, v)
			if err != nil {
				return err
			}
			tr, err := transport.NewUDP(":0", addr)
			if err != nil {
				return err
			}
			defer func() { _ = tr.Close() }()
			if _, err := tr.Write(frame); err != nil {
				return err
			}
			fmt.Printf("sent %d bytes to %s\n", len(frame), addr)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "controller UDP address (host:port)")
	_ = cmd.MarkFlagRequired("addr")
	return cmd
}

func newListenCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen on UDP and print decoded frames until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := newCodec()
			if err != nil {
				return err
			}
			tr, err := transport.NewUDP(addr, "")
			if err != nil {
				return err
			}
			fmt.Printf("listening on %s\n", tr.LocalAddr())

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigCh
				_ = tr.Close()
			}()

			buf := make([]byte, 4096)
			for {
				n, err := tr.Read(buf)
				if err != nil {
					return nil // 关闭即正常退出
				}
				d, err := codec.Decode(buf[:n])
				if err != nil {
					fmt.Printf("drop: %v\n", err)
					continue
				}
				fmt.Printf("peer=%s channel=%d type=%s value=%s\n",
					tr.RemoteID(), d.Channel, d.Value.Type, formatValue(d.Value))
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9000", "local UDP listen address")
	return cmd
}

func main() {
	root := &cobra.Command{
		Use:           "linkctl",
		Short:         "Bench tooling for the LBEAST controller link",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagSecret, "secret", "", "shared secret string")
	root.PersistentFlags().StringVar(&flagLevel, "level", "none", "security level: none|hmac|encrypted")
	root.PersistentFlags().Uint8Var(&flagChannel, "channel", 0, "channel number 0-255")
	root.PersistentFlags().StringVar(&flagType, "type", "float", "value type: bool|int32|float|string|bytes|struct")

	root.AddCommand(newKeysCmd(), newEncodeCmd(), newDecodeCmd(), newSendCmd(), newListenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
