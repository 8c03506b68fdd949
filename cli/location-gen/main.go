package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/daniil11ru/bustrack/cli/tracker/auth"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

/*
Генератор местоположений.

Имитирует водителя: открывает канал реального времени, отправляет серию
locationUpdate со смещением по широте и, при необходимости, endTrip.

Пример:

	./location-gen --bus 42 --lat 17.41 --lng 78.47 --count 10 --interval 1s --secret dev --end-trip
*/

type point struct {
	Lat float64
	Lng float64
}

type frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func track(start point, step float64, count int) []point {
	points := make([]point, 0, count)
	for i := 0; i < count; i++ {
		points = append(points, point{Lat: start.Lat + float64(i)*step, Lng: start.Lng})
	}
	return points
}

func locationFrame(busID string, p point) frame {
	return frame{Event: "locationUpdate", Data: map[string]interface{}{"busId": busID, "lat": p.Lat, "lng": p.Lng}}
}

func endTripFrame(busID string) frame {
	return frame{Event: "endTrip", Data: map[string]interface{}{"busId": busID}}
}

func handshakeHeader(token string) http.Header {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	return header
}

func resolveToken(token, secret, subject string, role auth.Role) (string, error) {
	if token != "" {
		return token, nil
	}
	if secret == "" {
		return "", fmt.Errorf("требуется --token или --secret")
	}
	return auth.Issue(secret, subject, role, time.Hour)
}

func main() {
	var (
		server   string
		busID    string
		token    string
		secret   string
		subject  string
		role     string
		lat      float64
		lng      float64
		step     float64
		count    int
		interval time.Duration
		endTrip  bool
	)

	pflag.StringVar(&server, "server", "ws://localhost:5000/socket", "Адрес канала реального времени")
	pflag.StringVar(&busID, "bus", "", "Идентификатор транспорта (обязательно)")
	pflag.StringVar(&token, "token", "", "Готовый токен")
	pflag.StringVar(&secret, "secret", "", "Секрет для выпуска токена, если --token не задан")
	pflag.StringVar(&subject, "subject", "location-gen", "Субъект выпускаемого токена")
	pflag.StringVar(&role, "role", string(auth.RoleDriver), "Роль выпускаемого токена")
	pflag.Float64Var(&lat, "lat", 0, "Начальная широта")
	pflag.Float64Var(&lng, "lng", 0, "Начальная долгота")
	pflag.Float64Var(&step, "step", 0.0001, "Смещение широты между отчётами")
	pflag.IntVar(&count, "count", 1, "Число отчётов")
	pflag.DurationVar(&interval, "interval", time.Second, "Интервал между отчётами")
	pflag.BoolVar(&endTrip, "end-trip", false, "Завершить рейс после отправки")
	pflag.Parse()

	if busID == "" {
		fmt.Println("Требуется идентификатор транспорта, смотрите помощь (-h)")
		os.Exit(1)
	}

	tok, err := resolveToken(token, secret, subject, auth.Role(role))
	if err != nil {
		fmt.Println("Ошибка получения токена: ", err)
		os.Exit(1)
	}

	conn, resp, err := websocket.DefaultDialer.Dial(server, handshakeHeader(tok))
	if err != nil {
		if resp != nil {
			fmt.Printf("Сервер отклонил соединение: %s\n", resp.Status)
		} else {
			fmt.Println("Ошибка подключения: ", err)
		}
		os.Exit(1)
	}
	defer conn.Close()

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			fmt.Println("Ответ сервера: ", string(data))
		}
	}()

	for i, p := range track(point{Lat: lat, Lng: lng}, step, count) {
		if i > 0 {
			time.Sleep(interval)
		}
		if err := conn.WriteJSON(locationFrame(busID, p)); err != nil {
			fmt.Println("Ошибка отправки: ", err)
			os.Exit(1)
		}
		out, _ := json.Marshal(p)
		fmt.Println("Отправлено: ", string(out))
	}

	if endTrip {
		if err := conn.WriteJSON(endTripFrame(busID)); err != nil {
			fmt.Println("Ошибка отправки: ", err)
			os.Exit(1)
		}
		fmt.Println("Рейс завершён")
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(100 * time.Millisecond)
}
