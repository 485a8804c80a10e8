//go:build linux

package ble

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	bluezBus         = "org.bluez"
	adapterIface     = "org.bluez.Adapter1"
	deviceIface      = "org.bluez.Device1"
	gattServiceIface = "org.bluez.GattService1"
	gattCharIface    = "org.bluez.GattCharacteristic1"
	propsIface       = "org.freedesktop.DBus.Properties"
	objManagerIface  = "org.freedesktop.DBus.ObjectManager"
)

// servicesResolvedPoll is how often Connect checks ServicesResolved.
const servicesResolvedPoll = 100 * time.Millisecond

type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZAdapter talks to the BlueZ daemon directly over the system D-Bus.
type BlueZAdapter struct {
	conn *dbus.Conn
	path dbus.ObjectPath // e.g. /org/bluez/hci0
}

// NewBlueZAdapter connects to the system bus and checks that BlueZ is
// running. hci names the controller, e.g. "hci0".
func NewBlueZAdapter(hci string) (*BlueZAdapter, error) {
	if hci == "" {
		hci = "hci0"
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("ble: connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ble: list bus names: %w", err)
	}
	if !slices.Contains(names, bluezBus) {
		conn.Close()
		return nil, fmt.Errorf("ble: org.bluez not found on system bus, is bluetooth.service running?")
	}
	return &BlueZAdapter{conn: conn, path: dbus.ObjectPath("/org/bluez/" + hci)}, nil
}

// Close releases the bus connection.
func (a *BlueZAdapter) Close() error {
	return a.conn.Close()
}

// devicePath converts "AA:BB:CC:DD:EE:FF" to ".../dev_AA_BB_CC_DD_EE_FF".
func (a *BlueZAdapter) devicePath(addr string) dbus.ObjectPath {
	return dbus.ObjectPath(string(a.path) + "/dev_" + strings.ReplaceAll(strings.ToUpper(addr), ":", "_"))
}

func (a *BlueZAdapter) getProp(path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	err := a.conn.Object(bluezBus, path).Call(propsIface+".Get", 0, iface, prop).Store(&v)
	return v, err
}

func (a *BlueZAdapter) getBool(path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := a.getProp(path, iface, prop)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not bool", prop)
	}
	return val, nil
}

func (a *BlueZAdapter) managedObjects() (managedObjects, error) {
	var objs managedObjects
	err := a.conn.Object(bluezBus, "/").Call(objManagerIface+".GetManagedObjects", 0).Store(&objs)
	if err != nil {
		return nil, fmt.Errorf("ble: get managed objects: %w", err)
	}
	return objs, nil
}

func (a *BlueZAdapter) Enable() error {
	powered, err := a.getBool(a.path, adapterIface, "Powered")
	if err != nil {
		return fmt.Errorf("ble: read %s Powered: %w", a.path, err)
	}
	if powered {
		return nil
	}
	err = a.conn.Object(bluezBus, a.path).
		Call(propsIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(true)).Err
	if err != nil {
		return fmt.Errorf("ble: power on %s: %w", a.path, err)
	}
	return nil
}

func (a *BlueZAdapter) Scan(ctx context.Context, serviceUUID string) ([]Device, error) {
	obj := a.conn.Object(bluezBus, a.path)

	filter := map[string]dbus.Variant{"Transport": dbus.MakeVariant("le")}
	if serviceUUID != "" {
		filter["UUIDs"] = dbus.MakeVariant([]string{serviceUUID})
	}
	if err := obj.Call(adapterIface+".SetDiscoveryFilter", 0, filter).Err; err != nil {
		return nil, fmt.Errorf("ble: set discovery filter: %w", err)
	}
	if err := obj.Call(adapterIface+".StartDiscovery", 0).Err; err != nil {
		return nil, fmt.Errorf("ble: start discovery: %w", err)
	}
	<-ctx.Done()
	_ = obj.Call(adapterIface+".StopDiscovery", 0).Err

	objs, err := a.managedObjects()
	if err != nil {
		return nil, err
	}

	prefix := string(a.path) + "/"
	now := time.Now()
	var devices []Device
	for path, ifaces := range objs {
		props, ok := ifaces[deviceIface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		if serviceUUID != "" && !hasUUID(props, serviceUUID) {
			continue
		}
		// RSSI is only present for devices heard during this discovery;
		// paired devices are listed even when silent.
		rssi, heard := props["RSSI"].Value().(int16)
		paired, _ := props["Paired"].Value().(bool)
		if !heard && !paired {
			continue
		}
		addr, _ := props["Address"].Value().(string)
		name, _ := props["Alias"].Value().(string)
		if n, ok := props["Name"].Value().(string); ok {
			name = n
		}
		devices = append(devices, Device{
			Name:    name,
			Address: addr,
			RSSI:    int(rssi),
			SeenAt:  now,
		})
	}
	return devices, nil
}

func hasUUID(props map[string]dbus.Variant, uuid string) bool {
	uuids, _ := props["UUIDs"].Value().([]string)
	for _, u := range uuids {
		if strings.EqualFold(u, uuid) {
			return true
		}
	}
	return false
}

func (a *BlueZAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	path := a.devicePath(address)
	if err := a.conn.Object(bluezBus, path).CallWithContext(ctx, deviceIface+".Connect", 0).Err; err != nil {
		return nil, fmt.Errorf("ble: connect to %s: %w", address, err)
	}

	// GATT objects appear only after service discovery has finished.
	ticker := time.NewTicker(servicesResolvedPoll)
	defer ticker.Stop()
	for {
		resolved, err := a.getBool(path, deviceIface, "ServicesResolved")
		if err == nil && resolved {
			break
		}
		select {
		case <-ctx.Done():
			_ = a.conn.Object(bluezBus, path).Call(deviceIface+".Disconnect", 0).Err
			return nil, fmt.Errorf("ble: resolve services on %s: %w", address, ctx.Err())
		case <-ticker.C:
		}
	}

	return &bluezConnection{adapter: a, path: path, done: make(chan struct{})}, nil
}

// Compile-time check that BlueZAdapter implements Adapter.
var _ Adapter = (*BlueZAdapter)(nil)

type bluezConnection struct {
	adapter *BlueZAdapter
	path    dbus.ObjectPath

	once sync.Once
	done chan struct{}
}

func (c *bluezConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	objs, err := c.adapter.managedObjects()
	if err != nil {
		return nil, err
	}

	prefix := string(c.path) + "/"
	var svcPath dbus.ObjectPath
	for path, ifaces := range objs {
		props, ok := ifaces[gattServiceIface]
		if !ok || !strings.HasPrefix(string(path), prefix) {
			continue
		}
		if u, _ := props["UUID"].Value().(string); strings.EqualFold(u, serviceUUID) {
			svcPath = path
			break
		}
	}
	if svcPath == "" {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	for path, ifaces := range objs {
		props, ok := ifaces[gattCharIface]
		if !ok {
			continue
		}
		svc, _ := props["Service"].Value().(dbus.ObjectPath)
		u, _ := props["UUID"].Value().(string)
		if svc != svcPath || !strings.EqualFold(u, charUUID) {
			continue
		}
		flags, _ := props["Flags"].Value().([]string)
		writeType := "request"
		if slices.Contains(flags, "write-without-response") {
			writeType = "command"
		}
		return &bluezCharacteristic{conn: c.adapter.conn, path: path, writeType: writeType}, nil
	}
	return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
}

func (c *bluezConnection) Disconnect() error {
	c.once.Do(func() { close(c.done) })
	return c.adapter.conn.Object(bluezBus, c.path).Call(deviceIface+".Disconnect", 0).Err
}

// OnDisconnect watches the device's Connected property.
func (c *bluezConnection) OnDisconnect(cb func()) {
	bus := c.adapter.conn
	match := []dbus.MatchOption{
		dbus.WithMatchObjectPath(c.path),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
	if err := bus.AddMatchSignal(match...); err != nil {
		slog.Warn("[BLE] cannot watch for link loss", "device", string(c.path), "error", err)
		return
	}
	ch := make(chan *dbus.Signal, 16)
	bus.Signal(ch)

	go func() {
		defer func() {
			bus.RemoveSignal(ch)
			_ = bus.RemoveMatchSignal(match...)
		}()
		for {
			select {
			case <-c.done:
				return
			case sig := <-ch:
				if sig.Path != c.path || len(sig.Body) < 2 {
					continue
				}
				if iface, _ := sig.Body[0].(string); iface != deviceIface {
					continue
				}
				changed, _ := sig.Body[1].(map[string]dbus.Variant)
				if v, ok := changed["Connected"]; ok {
					if connected, _ := v.Value().(bool); !connected {
						cb()
						return
					}
				}
			}
		}
	}()
}

type bluezCharacteristic struct {
	conn      *dbus.Conn
	path      dbus.ObjectPath
	writeType string // "command" (no response) or "request"
}

func (c *bluezCharacteristic) Write(data []byte) error {
	opts := map[string]dbus.Variant{"type": dbus.MakeVariant(c.writeType)}
	return c.conn.Object(bluezBus, c.path).Call(gattCharIface+".WriteValue", 0, data, opts).Err
}
