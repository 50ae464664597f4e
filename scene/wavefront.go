package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/achilleasa/radiance/asset"
	"github.com/achilleasa/radiance/log"
	"github.com/achilleasa/radiance/types"
)

var logger = log.New("scene")

type wavefrontReader struct {
	scene *Scene

	matByName map[string]*Material
	texByPath map[string]*Texture
	curMat    *Material
	curShape  *Shape

	vertexList []types.Vec3
	normalList []types.Vec3

	// An error stack that provides additional error information when
	// scene files include other files (models, mat libs e.t.c)
	errStack []string
}

// ReadWavefront parses a triangulated wavefront obj file (plus any referenced
// material libraries and textures) into a new scene. Besides the standard
// obj statements the reader understands 'camera_eye x y z', 'camera_look x
// y z' and 'light x y z radius r g b'.
func ReadWavefront(res *asset.Resource, camera Camera) (*Scene, error) {
	logger.Noticef("parsing scene from %s", res.Path())
	start := time.Now()

	r := &wavefrontReader{
		scene:     New(camera),
		matByName: make(map[string]*Material),
		texByPath: make(map[string]*Texture),
	}
	if err := r.parse(res); err != nil {
		return nil, err
	}

	logger.Noticef("parsed scene in %d ms (%d shapes, %d materials, %d textures)",
		time.Since(start).Nanoseconds()/1000000, len(r.scene.shapes), len(r.scene.materials), len(r.scene.textures))
	return r.scene, nil
}

// ReadWavefrontFile opens path and parses it with ReadWavefront.
func ReadWavefrontFile(path string, camera Camera) (*Scene, error) {
	res, err := asset.NewResource(path, nil)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	return ReadWavefront(res, camera)
}

// Generate an error message that also includes any data in the error stack.
func (r *wavefrontReader) emitError(file string, line int, msgFormat string, args ...interface{}) error {
	msg := fmt.Sprintf(msgFormat, args...)
	return fmt.Errorf("%s", strings.Trim(
		fmt.Sprintf("[%s: %d] error: %s\n%s", file, line, msg, strings.Join(r.errStack, "\n")),
		"\n",
	))
}

func (r *wavefrontReader) pushFrame(msg string) {
	r.errStack = append([]string{msg}, r.errStack...)
}

func (r *wavefrontReader) popFrame() {
	r.errStack = r.errStack[1:]
}

// Create and select a default material for surfaces not using one.
func (r *wavefrontReader) defaultMaterial() *Material {
	mat, exists := r.matByName[""]
	if !exists {
		mat = &Material{Diffuse: types.XYZ(0.7, 0.7, 0.7), IOR: 1}
		r.matByName[""] = mat
		r.scene.materials = append(r.scene.materials, mat)
	}
	return mat
}

func (r *wavefrontReader) parse(res *asset.Resource) error {
	var lineNum int
	var err error

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		switch lineTokens[0] {
		case "call", "mtllib":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for '%s'; expected 1 argument; got %d", lineTokens[0], len(lineTokens)-1)
			}

			r.pushFrame(fmt.Sprintf("referenced from %s:%d [%s]", res.Path(), lineNum, lineTokens[0]))

			incRes, err := asset.NewResource(lineTokens[1], res)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}

			if lineTokens[0] == "call" {
				err = r.parse(incRes)
			} else {
				err = r.parseMaterials(incRes)
			}
			incRes.Close()
			if err != nil {
				return err
			}
			r.popFrame()
		case "usemtl":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for 'usemtl'; expected 1 argument; got %d", len(lineTokens)-1)
			}

			mat, exists := r.matByName[lineTokens[1]]
			if !exists {
				return r.emitError(res.Path(), lineNum, "undefined material with name '%s'", lineTokens[1])
			}
			r.curMat = mat

			// Faces using a different material start a new shape
			if r.curShape != nil && len(r.curShape.Indices) != 0 && r.curShape.Material != mat {
				r.newShape(r.curShape.Name)
			}
		case "v", "vn":
			v, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			if lineTokens[0] == "v" {
				r.vertexList = append(r.vertexList, v)
			} else {
				r.normalList = append(r.normalList, v)
			}
		case "vt", "s":
			// texture coordinates and smoothing groups are not used
		case "g", "o":
			if len(lineTokens) < 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for '%s'; expected 1 argument for object name; got %d", lineTokens[0], len(lineTokens)-1)
			}
			r.newShape(lineTokens[1])
		case "f":
			if err = r.parseFace(lineTokens); err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "camera_eye":
			r.scene.camera.Position, err = parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
		case "camera_look":
			target, err := parseVec3(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			r.scene.camera.LookAt(target)
		case "light":
			light, err := parseLight(lineTokens)
			if err != nil {
				return r.emitError(res.Path(), lineNum, "%s", err.Error())
			}
			light.Name = fmt.Sprintf("light%d", len(r.scene.lights))
			r.scene.lights = append(r.scene.lights, light)
		default:
			logger.Debugf("[%s: %d] ignoring unsupported statement '%s'", res.Path(), lineNum, lineTokens[0])
		}
	}

	return scanner.Err()
}

func (r *wavefrontReader) newShape(name string) {
	r.curShape = &Shape{Name: name}
	r.scene.shapes = append(r.scene.shapes, r.curShape)
}

// Parse a triangular face definition. Each vertex argument uses one of the
// formats v, v/vt, v//vn or v/vt/vn. Indices start from 1 and may be
// negative to indicate an offset off the end of the vertex list.
func (r *wavefrontReader) parseFace(lineTokens []string) error {
	if len(lineTokens) != 4 {
		return fmt.Errorf("unsupported syntax for 'f'; expected 3 arguments for triangular face; got %d. Select the triangulation option in your exporter", len(lineTokens)-1)
	}

	if r.curMat == nil {
		r.curMat = r.defaultMaterial()
	}
	if r.curShape == nil {
		r.newShape("default")
	}
	shape := r.curShape
	shape.Material = r.curMat

	for arg := 0; arg < 3; arg++ {
		vTokens := strings.Split(lineTokens[arg+1], "/")
		if vTokens[0] == "" {
			return fmt.Errorf("face argument %d does not include a vertex index", arg)
		}

		offset, err := selectFaceCoordIndex(vTokens[0], len(r.vertexList))
		if err != nil {
			return fmt.Errorf("could not parse vertex coord for face argument %d: %s", arg, err.Error())
		}

		normal := types.Vec3{}
		if len(vTokens) == 3 && vTokens[2] != "" {
			nOffset, err := selectFaceCoordIndex(vTokens[2], len(r.normalList))
			if err != nil {
				return fmt.Errorf("could not parse normal coord for face argument %d: %s", arg, err.Error())
			}
			normal = r.normalList[nOffset]
		}

		shape.Indices = append(shape.Indices, uint32(len(shape.Vertices)))
		shape.Vertices = append(shape.Vertices, r.vertexList[offset])
		shape.Normals = append(shape.Normals, normal)
	}

	return nil
}

// Parse a wavefront material library.
func (r *wavefrontReader) parseMaterials(res *asset.Resource) error {
	var lineNum int
	var err error
	var curMaterial *Material

	scanner := bufio.NewScanner(res)
	for scanner.Scan() {
		lineNum++
		lineTokens := strings.Fields(scanner.Text())
		if len(lineTokens) == 0 || strings.HasPrefix(lineTokens[0], "#") {
			continue
		}

		if lineTokens[0] == "newmtl" {
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for 'newmtl'; expected 1 argument; got %d", len(lineTokens)-1)
			}

			matName := lineTokens[1]
			if _, exists := r.matByName[matName]; exists {
				return r.emitError(res.Path(), lineNum, "material '%s' already defined", matName)
			}

			curMaterial = &Material{Name: matName, IOR: 1}
			r.matByName[matName] = curMaterial
			r.scene.materials = append(r.scene.materials, curMaterial)
			continue
		}

		if curMaterial == nil {
			return r.emitError(res.Path(), lineNum, "got '%s' without a 'newmtl'", lineTokens[0])
		}

		switch lineTokens[0] {
		case "Kd":
			curMaterial.Diffuse, err = parseVec3(lineTokens)
		case "Ke":
			curMaterial.Emissive, err = parseVec3(lineTokens)
		case "Ni":
			curMaterial.IOR, err = parseFloat32(lineTokens)
		case "Nr", "Pr":
			curMaterial.Roughness, err = parseFloat32(lineTokens)
		case "map_Kd":
			if len(lineTokens) != 2 {
				return r.emitError(res.Path(), lineNum, "unsupported syntax for 'map_Kd'; expected 1 argument; got %d", len(lineTokens)-1)
			}
			var tex *Texture
			tex, err = r.loadTexture(lineTokens[1], res)
			if tex != nil {
				curMaterial.DiffuseMap = tex
			}
		default:
			logger.Debugf("[%s: %d] ignoring unsupported material statement '%s'", res.Path(), lineNum, lineTokens[0])
		}

		if err != nil {
			return r.emitError(res.Path(), lineNum, "%s", err.Error())
		}
	}

	return scanner.Err()
}

// Load a texture relative to the material library. Missing local textures
// are skipped with a warning.
func (r *wavefrontReader) loadTexture(path string, relTo *asset.Resource) (*Texture, error) {
	imgRes, err := asset.NewResource(path, relTo)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Warningf("ignoring missing texture %s", path)
			return nil, nil
		}
		return nil, err
	}
	defer imgRes.Close()

	if tex, exists := r.texByPath[imgRes.Path()]; exists {
		return tex, nil
	}

	img, err := asset.DecodeImage(imgRes, 0, 0)
	if err != nil {
		return nil, err
	}

	tex := &Texture{Name: imgRes.Path(), Image: img}
	r.texByPath[imgRes.Path()] = tex
	r.scene.textures = append(r.scene.textures, tex)
	return tex, nil
}

func parseLight(lineTokens []string) (*Light, error) {
	if len(lineTokens) != 8 {
		return nil, fmt.Errorf("unsupported syntax for 'light'; expected 7 arguments: x y z radius r g b; got %d", len(lineTokens)-1)
	}

	var values [7]float32
	for index := range values {
		v, err := strconv.ParseFloat(lineTokens[index+1], 32)
		if err != nil {
			return nil, err
		}
		values[index] = float32(v)
	}

	return &Light{
		Position: types.XYZ(values[0], values[1], values[2]),
		Radius:   values[3],
		Emission: types.XYZ(values[4], values[5], values[6]),
	}, nil
}

func selectFaceCoordIndex(indexToken string, coordListLen int) (int, error) {
	index, err := strconv.ParseInt(indexToken, 10, 32)
	if err != nil {
		return -1, err
	}

	var offset int
	if index < 0 {
		offset = coordListLen + int(index)
	} else {
		offset = int(index - 1)
	}

	if offset < 0 || offset >= coordListLen {
		return -1, fmt.Errorf("index out of bounds")
	}

	return offset, nil
}

func parseFloat32(lineTokens []string) (float32, error) {
	if len(lineTokens) != 2 {
		return 0, fmt.Errorf("unsupported syntax for '%s'; expected 1 argument; got %d", lineTokens[0], len(lineTokens)-1)
	}

	val, err := strconv.ParseFloat(lineTokens[1], 32)
	if err != nil {
		return 0, err
	}

	return float32(val), nil
}

func parseVec3(lineTokens []string) (types.Vec3, error) {
	if len(lineTokens) < 4 {
		return types.Vec3{}, fmt.Errorf("unsupported syntax for '%s'; expected 3 arguments; got %d", lineTokens[0], len(lineTokens)-1)
	}

	var v types.Vec3
	for index := 0; index < 3; index++ {
		val, err := strconv.ParseFloat(lineTokens[index+1], 32)
		if err != nil {
			return v, err
		}
		v[index] = float32(val)
	}

	return v, nil
}
